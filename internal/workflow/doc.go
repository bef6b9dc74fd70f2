// Package workflow decides whether a workflow-aware item may move from its
// current status to a requested one.
//
// The decision is data driven: a workflow is a set of (from, to, role) edges
// configured per tenant, and every item type points at one workflow. The
// engine never branches on the concrete kind of item; anything implementing
// Item can be governed by it.
//
// Denials carry one of three reasons so callers can tell a missing
// configuration (UNCONFIGURED) from a move the graph does not model
// (NO_SUCH_TRANSITION) and from a move the caller's roles do not cover
// (ROLE_DENIED).
package workflow
