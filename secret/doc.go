// Package secret expands environment references in configured values, such
// as cache paths, failing when a referenced variable is not set.
package secret
