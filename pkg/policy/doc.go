// Package policy evaluates Rego policies against the target graph before
// goals execute. Violations at error severity block the run.
package policy
