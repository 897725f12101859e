// Package probe sends one-shot diagnostic HTTP requests and captures what came
// back.
//
// A Request is built once, validated, JSON-encoded and handed to a
// webclient.WebClient. The Result always exists, even when the call failed:
// transport errors, timeouts and validation problems are recorded on
// Result.Err instead of being returned, so a sequence of probes run through
// Runner.RunAll never stops early. Non-2xx statuses are not errors.
//
// Response bodies are parsed as JSON when possible. When they are not, the
// raw text is kept, the decode error is recorded, and for HTML pages the
// <title> is extracted so a one-line summary is still useful.
package probe
