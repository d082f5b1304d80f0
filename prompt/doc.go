// Package prompt assembles the bounded context supplied to generation calls.
// The assembly order is a contract, not a preference:
//
//  1. stable system preamble (byte-identical across every call)
//  2. workspace manifest
//  3. recent events, deterministically formatted
//  4. goal recap, always last
//
// The stable prefix maximizes prefix-cache reuse on the generation backend;
// the recap placed last leans on recency bias so current goals are the text
// the model honors most reliably. Changing this order breaks both properties
// and must not be done casually.
package prompt
