// Package health holds the probes behind the liveness and readiness
// endpoints on the ops listener.
//
// Probes compose with [All] and [Any]. [Timeout] bounds a slow dependency
// such as the database ping. [ShutdownGate] fails readiness during drain so
// the load balancer stops routing before the listeners close.
package health
