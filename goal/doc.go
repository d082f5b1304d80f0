// Package goal implements the task tracker that gives an orchestration run
// its todo-list shaped working memory. Tasks are session-scoped, sequentially
// numbered and never deleted, only transitioned. The Recap rendering is the
// compact checklist recited at the end of every assembled context: goals
// placed last are the ones attention honors most reliably.
package goal
