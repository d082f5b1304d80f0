// Package model provides core.Generator implementations. Provider adapters
// live in subpackages (openai, anthropic); the scripted Mock supports
// deterministic tests and offline demos.
package model
