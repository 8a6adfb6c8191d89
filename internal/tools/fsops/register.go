package fsops

import "foreman/internal/tools"

// RegisterAll adds every filesystem tool to the registry.
func RegisterAll(registry *tools.Registry) {
	registry.MustRegister(ReadFileTool())
	registry.MustRegister(ReadImageTool())
	registry.MustRegister(WriteFileTool())
	registry.MustRegister(StrReplaceTool())
	registry.MustRegister(FindInContentTool())
	registry.MustRegister(FindByNameTool())
}
