// Package tools defines the tool catalog exposed to the planner and the
// dispatcher that invokes a catalog entry with validated parameters.
//
// Every tool declares the semantic role of each parameter (numeric, boolean,
// text or structured). The declaration is checked when the tool is registered
// and the parameters are checked again right before dispatch.
package tools
