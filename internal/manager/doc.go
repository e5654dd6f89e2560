// Package manager is the queue manager: it decides whether a capture is
// uploaded immediately or deferred to the persistent queue, and drains the
// queue one item at a time when connectivity returns, on a periodic sweep, or
// on explicit request.
//
// A capture only leaves the queue after its upload is confirmed, and at most
// one retry pass runs per manager; concurrent Retry calls share its result.
package manager
