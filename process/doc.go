// Package process runs external programs for operators that delegate
// feature extraction to a subprocess. A Runner adds retries and a circuit
// breaker shared by every call of one operator.
package process
