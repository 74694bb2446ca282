// Package stage defines the result model shared by the pipeline stages and
// the subprocess executor their runners delegate to.
//
// A Result normalizes one external tool invocation into a status, the ordered
// list of produced file paths, elapsed time, and an operator-facing message.
// Dry-run results are marked simulated. The Executor interface lets tests
// substitute a fake for the real CommandExecutor.
package stage
