/*
Package events implements a small in-memory pub/sub broker used to expose
a partition actor's lifecycle as an observable feed, distinct from the
typed onBecomingLeader/onBecomingFollower contract that pkg/partition's
Listener interface provides. Where a Listener is awaited synchronously by
the actor and can fail a transition, the broker is fire-and-forget: a CLI
or audit sink subscribes and reads events without being able to affect
the actor that published them.

Publish blocks only while the broker's 100-event queue is full (or until
Stop), and delivery is best-effort; a slow subscriber drops events rather
than stalling the broker.
*/
package events
