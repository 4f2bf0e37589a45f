// Command snapflow is the operator CLI. It talks to a running snapflowd over
// its local HTTP API and provides configuration utilities that work offline.
package main
