// Package tools defines the Tool interface for agent-facing tools, including parameter schemas and invocation callbacks. Concrete Qarnot tools live in the qtasks and qstorage sub-packages.
package tools
