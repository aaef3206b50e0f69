// Package testutil contains helper builders and fixtures used across tests
// to reduce boilerplate when constructing messages and tools. They are not
// intended for production usage.
package testutil
