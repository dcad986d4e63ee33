// Package domain contains the entities shared across the application. They
// describe the outcome of a lookup and carry no infrastructure concerns, so the
// resolver, whois and CLI layers can all depend on them.
package domain
