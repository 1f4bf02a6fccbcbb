// Package framework contains the low-level implementation of test harness infrastructure
// that is not specific to any one target server.
//
// The general model is:
//
// 1. A run is a tree of named contexts. The root context has no name; each test case is a
// child context created with Run, and its path of names is its CaseID.
//
// 2. A context is similar to Go's *testing.T: it accumulates errors, can fail immediately
// with FailNow, can be skipped, and implements require.TestingT so that the assert and
// require packages can be used against it.
//
// 3. Each context has its own capturing debug logger. The TestLogger decides whether that
// output is shown, typically only for failed cases.
//
// The domain-specific code that knows how to check out a revision, start a server and probe
// it lives in the harness package, on top of this one.
package framework
