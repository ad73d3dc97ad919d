/*
	Package awaitcall implements request/response calls over a message-only
	channel between two isolated contexts.

	The two sides cannot share memory or call each other's functions, they can
	only post serializable messages to each other. A Dispatcher turns that into
	named calls: Call sends an invocation envelope and returns a Call that
	settles when the matching reply arrives; Receive registers the handler that
	serves a name on the other side; Ignore removes it.

	Transport is the message channel. Once a Transport is established, it does
	not matter which side created it: both Dispatchers can call and receive at
	the same time.

	A Call to a name that has no receiver on the other side never settles. This
	is intentional; pair every Call with a Receive.

	When a Dispatcher invokes a handler, the handler's context carries the
	Dispatcher, which can be acquired with FromContext(ctx) to make calls back
	to the caller.
*/
package awaitcall
