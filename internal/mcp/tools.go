package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/heart-intake-server/internal/api"
	"github.com/heart-intake-server/internal/domain"
)

// Tool names
const (
	ToolListPatients  = "list_patients"
	ToolCreatePatient = "create_patient"
	ToolGetPatient    = "get_patient"
	ToolDeletePatient = "delete_patient"
)

// ListPatientsParams defines parameters for list_patients tool
type ListPatientsParams struct{}

// PatientNameParams defines parameters for the tools addressing one patient
type PatientNameParams struct {
	Name string `json:"name" jsonschema:"exact patient name"`
}

// ToolError is the structured payload of a failed tool call
type ToolError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (s *Server) handleListPatients(ctx context.Context, req *mcp.CallToolRequest, _ ListPatientsParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolListPatients).Info("Tool invoked")

	records, err := s.patients.List(ctx)
	if err != nil {
		return toolError(err)
	}

	view := api.PresentPatients(records)
	return toolResult(fmt.Sprintf("%d patients stored", len(view.Patients)), view)
}

func (s *Server) handleCreatePatient(ctx context.Context, req *mcp.CallToolRequest, params domain.PatientSubmission) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolCreatePatient).Info("Tool invoked")

	record, err := s.patients.Create(ctx, &params)
	if err != nil {
		return toolError(err)
	}

	s.logger.WithFields(logrus.Fields{
		"patient_id": record.ID,
		"name":       record.Name,
	}).Debug("Patient created through MCP")

	return toolResult(fmt.Sprintf("Patient %s stored with outcome %s", record.Name, outcomeText(record.Outcome)), api.PresentPatient(record))
}

func (s *Server) handleGetPatient(ctx context.Context, req *mcp.CallToolRequest, params PatientNameParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolGetPatient).Info("Tool invoked")

	record, err := s.patients.Get(ctx, params.Name)
	if err != nil {
		return toolError(err)
	}

	return toolResult(fmt.Sprintf("Patient %s has outcome %s", record.Name, outcomeText(record.Outcome)), api.PresentPatient(record))
}

func (s *Server) handleDeletePatient(ctx context.Context, req *mcp.CallToolRequest, params PatientNameParams) (*mcp.CallToolResult, any, error) {
	s.logger.WithField("tool", ToolDeletePatient).Info("Tool invoked")

	message, err := s.patients.Delete(ctx, params.Name)
	if err != nil {
		return toolError(err)
	}

	return toolResult(message, api.DeletedView{Message: message, Name: params.Name})
}

// toolResult renders a summary line followed by the JSON projection.
func toolResult(summary string, output any) (*mcp.CallToolResult, any, error) {
	data, err := json.MarshalIndent(output, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("encoding tool output: %w", err)
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: summary},
			&mcp.TextContent{Text: string(data)},
		},
	}, output, nil
}

// toolError reports a workflow failure as a tool-level error carrying the same
// user-facing message as the HTTP surface.
func toolError(err error) (*mcp.CallToolResult, any, error) {
	payload := ToolError{
		Code:    domain.ErrorCode(err),
		Message: domain.UserMessage(err),
	}

	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("%s: %s", payload.Code, payload.Message)},
		},
	}, payload, nil
}

func outcomeText(outcome *int) string {
	if outcome == nil {
		return "unknown"
	}
	if *outcome == domain.OutcomePositive {
		return "1 (positive)"
	}
	return "0 (negative)"
}
