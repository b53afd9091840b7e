// Package cdpsource captures network traffic from a running Chromium over the
// Chrome DevTools Protocol and emits it as capture entries.
//
// A Source attaches to every page target of a browser started with
// --remote-debugging-port, enables the network domain and correlates
// requestWillBeSent, responseReceived and loadingFinished events per request.
// Response bodies are fetched lazily with Network.getResponseBody when an
// entry's Body is resolved. Failed loads are discarded.
package cdpsource
