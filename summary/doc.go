// Package summary relays article summary requests to the RapidAPI
// article-extractor-and-summarizer service.
package summary
