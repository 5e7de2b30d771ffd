// Package main provides the entry point for the trugle CLI.
//
// trugle crawls web pages breadth-first, keeps an inverted index of their
// text and answers keyword searches over HTTP.
//
// Usage:
//
//	trugle crawl https://example.com/
//	trugle serve --seed https://example.com/ --max-pages 5
//	trugle search truth
//
// See --help for all available options.
package main

func main() {
	Execute()
}
