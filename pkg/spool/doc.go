// Package spool submits print jobs to a CUPS-style spooler and follows them
// to completion.
//
// A caller builds JobSpecs, hands a batch to a Pool, and observes progress
// through a Listener. For each job the pool runs the Invoker (one "lp"
// invocation) and then a Tracker, which either polls the completed-jobs list
// (PollTracker) or follows the page log (LogTracker). Completed jobs are
// persisted through a Recorder; failed ones never are.
package spool
