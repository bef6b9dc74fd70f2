package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"derbent-workflow/backend/internal/auth"
	"derbent-workflow/backend/internal/services"
	"derbent-workflow/backend/internal/workflow"
	"derbent-workflow/backend/pkg/models"
)

type Server struct {
	mcpServer *server.MCPServer
	statuses  *services.StatusService
	workflows *services.WorkflowService
	items     *services.ItemService
}

func NewServer(statuses *services.StatusService, workflows *services.WorkflowService, items *services.ItemService) *Server {
	s := &Server{
		mcpServer: server.NewMCPServer(
			"Derbent Workflow",
			"1.0.0",
			server.WithToolCapabilities(true),
		),
		statuses:  statuses,
		workflows: workflows,
		items:     items,
	}

	s.registerTools()
	return s
}

func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_statuses",
			mcp.WithDescription("List the statuses of the caller's tenant in display order"),
		),
		s.handleListStatuses,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"list_transitions",
			mcp.WithDescription("List the transitions of a workflow"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
		),
		s.handleListTransitions,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"add_transition",
			mcp.WithDescription("Allow moving from one status to another in a workflow. Adding an existing transition is a no-op"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("from_status_id", mcp.Required(), mcp.Description("The status the move starts from")),
			mcp.WithString("to_status_id", mcp.Required(), mcp.Description("The status the move ends in")),
			mcp.WithString("role_id", mcp.Description("Restrict the move to holders of this role; omit to allow anyone")),
			mcp.WithBoolean("initial", mcp.Description("Mark the target as the workflow's initial status")),
		),
		s.handleAddTransition,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"remove_transition",
			mcp.WithDescription("Remove one transition, matched on workflow, both statuses and role"),
			mcp.WithString("workflow_id", mcp.Required(), mcp.Description("The ID of the workflow")),
			mcp.WithString("from_status_id", mcp.Required(), mcp.Description("The status the move starts from")),
			mcp.WithString("to_status_id", mcp.Required(), mcp.Description("The status the move ends in")),
			mcp.WithString("role_id", mcp.Description("The role of the transition; omit for the unrestricted one")),
		),
		s.handleRemoveTransition,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"next_statuses",
			mcp.WithDescription("List the statuses the caller may move an item to, current status first"),
			mcp.WithString("item_id", mcp.Required(), mcp.Description("The ID of the item")),
		),
		s.handleNextStatuses,
	)

	s.mcpServer.AddTool(
		mcp.NewTool(
			"request_status_change",
			mcp.WithDescription("Move an item to another status if the workflow and the caller's roles allow it"),
			mcp.WithString("item_id", mcp.Required(), mcp.Description("The ID of the item")),
			mcp.WithString("status_id", mcp.Required(), mcp.Description("The requested status")),
		),
		s.handleRequestStatusChange,
	)
}

type arguments map[string]interface{}

func parseArgs(request mcp.CallToolRequest) (arguments, *mcp.CallToolResult) {
	if request.Params.Arguments == nil {
		return arguments{}, nil
	}
	args, ok := request.Params.Arguments.(map[string]interface{})
	if !ok {
		return nil, mcp.NewToolResultError("Invalid arguments type")
	}
	return args, nil
}

func (a arguments) required(name string) (string, *mcp.CallToolResult) {
	v, ok := a[name].(string)
	if !ok || v == "" {
		return "", mcp.NewToolResultError("Missing required parameter: " + name)
	}
	return v, nil
}

func (a arguments) optional(name string) string {
	v, _ := a[name].(string)
	return v
}

func actorOf(ctx context.Context) (models.Actor, *mcp.CallToolResult) {
	actor, ok := auth.ActorFromContext(ctx)
	if !ok {
		return models.Actor{}, mcp.NewToolResultError("Unauthenticated: no tenant in session")
	}
	return actor, nil
}

func jsonResult(v any) *mcp.CallToolResult {
	jsonBytes, _ := json.Marshal(v)
	return mcp.NewToolResultText(string(jsonBytes))
}

func (s *Server) handleListStatuses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, res := actorOf(ctx)
	if res != nil {
		return res, nil
	}
	statuses, err := s.statuses.ListStatuses(ctx, actor)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list statuses: %v", err)), nil
	}
	return jsonResult(statuses), nil
}

func (s *Server) handleListTransitions(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, res := actorOf(ctx)
	if res != nil {
		return res, nil
	}
	args, res := parseArgs(request)
	if res != nil {
		return res, nil
	}
	workflowID, res := args.required("workflow_id")
	if res != nil {
		return res, nil
	}

	edges, err := s.workflows.FindByWorkflow(ctx, actor, workflowID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list transitions: %v", err)), nil
	}
	return jsonResult(edges), nil
}

func (s *Server) edgeArgs(request mcp.CallToolRequest) (services.TransitionInput, *mcp.CallToolResult) {
	var in services.TransitionInput
	args, res := parseArgs(request)
	if res != nil {
		return in, res
	}
	if in.WorkflowID, res = args.required("workflow_id"); res != nil {
		return in, res
	}
	if in.FromStatusID, res = args.required("from_status_id"); res != nil {
		return in, res
	}
	if in.ToStatusID, res = args.required("to_status_id"); res != nil {
		return in, res
	}
	in.RoleID = args.optional("role_id")
	in.Initial, _ = args["initial"].(bool)
	return in, nil
}

func (s *Server) handleAddTransition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, res := actorOf(ctx)
	if res != nil {
		return res, nil
	}
	in, res := s.edgeArgs(request)
	if res != nil {
		return res, nil
	}

	edge, err := s.workflows.AddStatusTransition(ctx, actor, in)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to add transition: %v", err)), nil
	}
	return jsonResult(edge), nil
}

func (s *Server) handleRemoveTransition(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, res := actorOf(ctx)
	if res != nil {
		return res, nil
	}
	in, res := s.edgeArgs(request)
	if res != nil {
		return res, nil
	}

	removed, err := s.workflows.DeleteByWorkflowAndStatuses(ctx, actor, in.WorkflowID, in.FromStatusID, in.ToStatusID, in.RoleID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to remove transition: %v", err)), nil
	}
	if !removed {
		return mcp.NewToolResultText("No matching transition"), nil
	}
	return mcp.NewToolResultText("Transition removed"), nil
}

func (s *Server) handleNextStatuses(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, res := actorOf(ctx)
	if res != nil {
		return res, nil
	}
	args, res := parseArgs(request)
	if res != nil {
		return res, nil
	}
	itemID, res := args.required("item_id")
	if res != nil {
		return res, nil
	}

	next, err := s.items.NextStatuses(ctx, actor, itemID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to list next statuses: %v", err)), nil
	}
	return jsonResult(next), nil
}

// handleRequestStatusChange reports denials as error results carrying the
// decision, so callers can tell the three reasons apart.
func (s *Server) handleRequestStatusChange(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	actor, res := actorOf(ctx)
	if res != nil {
		return res, nil
	}
	args, res := parseArgs(request)
	if res != nil {
		return res, nil
	}
	itemID, res := args.required("item_id")
	if res != nil {
		return res, nil
	}
	statusID, res := args.required("status_id")
	if res != nil {
		return res, nil
	}

	item, decision, err := s.items.ChangeStatus(ctx, actor, itemID, statusID)
	var denied *workflow.DeniedError
	if errors.As(err, &denied) {
		jsonBytes, _ := json.Marshal(struct {
			Error    string            `json:"error"`
			Decision workflow.Decision `json:"decision"`
		}{err.Error(), decision})
		return mcp.NewToolResultError(string(jsonBytes)), nil
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to change status: %v", err)), nil
	}
	return jsonResult(map[string]any{"item": item, "decision": decision}), nil
}

// MountHTTPHandlers serves the MCP SSE transport on mux. The request
// context, including the authenticated actor, is handed to tool calls.
func MountHTTPHandlers(mux *http.ServeMux, mcpServer *server.MCPServer) {
	sseServer := server.NewSSEServer(mcpServer,
		server.WithStaticBasePath("/mcp"),
		server.WithSSEContextFunc(func(ctx context.Context, r *http.Request) context.Context {
			if actor, ok := auth.ActorFromContext(r.Context()); ok {
				return auth.WithActor(ctx, actor)
			}
			return ctx
		}),
	)

	mux.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		// Direct POST for tool calls
		if r.Method == http.MethodPost {
			sseServer.ServeHTTP(w, r)
			return
		}
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	})

	// SSE endpoints
	mux.HandleFunc("/mcp/sse", sseServer.ServeHTTP)
	mux.HandleFunc("/mcp/message", sseServer.ServeHTTP)
}
