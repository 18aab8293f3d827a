package mcp

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/cvd-risk-mcp-server/internal/audit"
	"github.com/cvd-risk-mcp-server/internal/domain"
)

// ToolImportAudit restores calculation audit records from a JSON export.
const ToolImportAudit = "import_audit"

var errAuditStore = errors.New("audit store failure")

type importAuditParams struct {
	FilePath string `json:"file_path" binding:"required"`
}

// importAuditResult is the payload of a successful import.
type importAuditResult struct {
	Imported int    `json:"imported"`
	Skipped  int    `json:"skipped"`
	Message  string `json:"message"`
}

// RegisterAuditTools adds the audit maintenance tools backed by store.
func (s *Server) RegisterAuditTools(store audit.Store) {
	s.addTool(&mcp.Tool{
		Name:        ToolImportAudit,
		Description: "Import calculation audit records from a JSON export file. Records already present are skipped.",
		InputSchema: object([]string{"file_path"}, map[string]*jsonschema.Schema{
			"file_path": prop("string", "Path to the JSON export to import"),
		}),
	}, func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return s.handleImportAudit(ctx, req, store)
	})
}

func (s *Server) handleImportAudit(ctx context.Context, req *mcp.CallToolRequest, store audit.Store) (*mcp.CallToolResult, error) {
	var params importAuditParams
	if err := s.bind(req, &params); err != nil {
		return s.errorResult(ToolImportAudit, err), nil
	}

	file, err := os.Open(params.FilePath)
	if err != nil {
		return s.errorResult(ToolImportAudit,
			domain.NewValidationError("file_path", err.Error(), params.FilePath)), nil
	}
	defer file.Close()

	imported, skipped, err := store.ImportJSON(ctx, file)
	if err != nil {
		if !errors.Is(err, audit.ErrInvalidExport) {
			err = fmt.Errorf("%w: %v", errAuditStore, err)
		}
		return s.errorResult(ToolImportAudit, err), nil
	}

	s.logger.WithFields(logrus.Fields{
		"tool":     ToolImportAudit,
		"imported": imported,
		"skipped":  skipped,
	}).Info("Tool invoked")

	result := importAuditResult{
		Imported: imported,
		Skipped:  skipped,
		Message:  fmt.Sprintf("Imported %d records, skipped %d duplicates", imported, skipped),
	}
	return s.jsonResult(result.Message, result)
}
