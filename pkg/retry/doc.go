// Package retry decides what happens to a scheduled job after every platform
// failed, and retries transient storage writes.
//
// Policy is a pure function of (retryCount, maxRetries): it returns a Decision
// that is either Retry with a delay or Terminal. Callers apply the decision;
// the policy itself never touches timers or storage.
package retry
