package intervention

import (
	"fmt"

	"github.com/hupe1980/agentbus/core"
	"github.com/hupe1980/agentbus/logging"
)

// ApprovalFunc decides whether a tool call may proceed. Implementations may
// block on human input but must honor mctx.Err() while doing so.
type ApprovalFunc func(mctx *core.MessageContext, call core.FunctionCall) bool

// ToolApprovalHandler gates outbound core.FunctionCall messages behind an
// approval decision. Denied calls abort the delivery with a policy error
// (core.ErrToolDenied) before the tool agent is ever reached; all other
// message types pass through untouched.
type ToolApprovalHandler struct {
	PassthroughHandler
	approve ApprovalFunc
}

// NewToolApprovalHandler wraps an approval decision function.
func NewToolApprovalHandler(approve ApprovalFunc) *ToolApprovalHandler {
	return &ToolApprovalHandler{approve: approve}
}

// OnSend vetoes function calls the approval function rejects.
func (h *ToolApprovalHandler) OnSend(mctx *core.MessageContext, msg any, _ core.AgentID) (Decision, error) {
	call, ok := msg.(core.FunctionCall)
	if !ok {
		return Forward(msg), nil
	}
	if h.approve != nil && !h.approve(mctx, call) {
		return Decision{}, fmt.Errorf("%w: %s (call %s)", core.ErrToolDenied, call.Name, call.ID)
	}
	return Forward(msg), nil
}

// AuditHandler logs every message passing any hook point without altering it.
type AuditHandler struct {
	logger logging.Logger
}

// NewAuditHandler builds an audit handler; a nil logger is replaced with a no-op.
func NewAuditHandler(logger logging.Logger) *AuditHandler {
	if logger == nil {
		logger = logging.NoOpLogger{}
	}
	return &AuditHandler{logger: logger}
}

// OnSend logs and forwards.
func (h *AuditHandler) OnSend(mctx *core.MessageContext, msg any, recipient core.AgentID) (Decision, error) {
	h.logger.Debug("intervention.send", "recipient", recipient.String(), "message_type", fmt.Sprintf("%T", msg), "sender", senderLabel(mctx))
	return Forward(msg), nil
}

// OnPublish logs and forwards.
func (h *AuditHandler) OnPublish(mctx *core.MessageContext, msg any, topic string) (Decision, error) {
	h.logger.Debug("intervention.publish", "topic", topic, "message_type", fmt.Sprintf("%T", msg), "sender", senderLabel(mctx))
	return Forward(msg), nil
}

// OnResponse logs and forwards.
func (h *AuditHandler) OnResponse(_ *core.MessageContext, msg any, sender core.AgentID) (Decision, error) {
	h.logger.Debug("intervention.response", "sender", sender.String(), "message_type", fmt.Sprintf("%T", msg))
	return Forward(msg), nil
}

func senderLabel(mctx *core.MessageContext) string {
	if mctx == nil || mctx.Sender == nil {
		return "external"
	}
	return mctx.Sender.String()
}
