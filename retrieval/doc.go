// Package retrieval provides the built-in tool capabilities: semantic talk
// search over a CSV corpus, SDG indicator lookup, web search and transcript
// fetching. Each constructor returns a tool.Descriptor ready for registration.
package retrieval
