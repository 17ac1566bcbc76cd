// Package fetch provides the page retrieval capability used by the crawler.
//
// A Fetcher turns a URL into a status code, a content type and a text body.
// Two implementations are provided:
//
//   - HTTPFetcher talks to a real server over the network, optionally
//     through a SOCKS5 proxy and with per-host rate limiting.
//   - HandlerFetcher feeds requests straight into an http.Handler, so an
//     application can be crawled without opening a socket.
//
// Any other source can be plugged in with FetcherFunc.
package fetch
