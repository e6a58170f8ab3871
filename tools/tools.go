package tools

import (
	"context"

	"github.com/cockroachdb/errors"

	"github.com/chloepilonv/mcp-server-qarnot/utils"
)

// ErrFailedUnmarshalInput is returned when a tool cannot parse the
// input sent by the calling agent.
var ErrFailedUnmarshalInput = errors.New("failed to unmarshal input: check the schema and try again")

// ITool is a tool exposed to the AI agent.
type ITool interface {
	// Name returns the name of the Tool.
	Name() string
	// Description returns the description of the tool, consumed by the
	// agent for tool selection.
	Description() string
	// Parameters returns the parameters definition of the tool input.
	Parameters() any

	// Call executes the tool with the given input and returns the result.
	// If the tool fails to parse the input, it should return
	// ErrFailedUnmarshalInput error.
	Call(context.Context, string) (string, error)
}

// Tool is a typed tool with a structured request and response.
type Tool[I any, O any] interface {
	ITool
	Run(context.Context, *I) (*O, error)
}

type Callback interface {
	OnToolStart(context.Context, ITool, string)
	OnToolEnd(context.Context, ITool, string, string)
	OnToolError(context.Context, ITool, string, error)
}

type toolDescription struct {
	Name        string `json:"Name" yaml:"Name"`
	Description string `json:"Description" yaml:"Description"`
}

type toolsDescription struct {
	Tools []toolDescription `json:"Tools" yaml:"Tools"`
}

// GetDescriptions returns a JSON document describing the tools.
func GetDescriptions(list ...ITool) string {
	var d toolsDescription
	for _, tool := range list {
		d.Tools = append(d.Tools, toolDescription{
			Name:        tool.Name(),
			Description: tool.Description(),
		})
	}
	return utils.ToJSONIndent(d)
}
