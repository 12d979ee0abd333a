// Package model defines the data types shared by the task routing core:
// task descriptors fetched from a process engine, routing metadata extracted
// from process definitions, service endpoints, dispatch outcomes and the
// analysis records derived from them.
package model
