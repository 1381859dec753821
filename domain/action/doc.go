// Package action turns match results into OS input events. It is a thin
// dispatcher; nothing in the matching pipeline depends on it.
package action
