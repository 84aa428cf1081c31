package transcript

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	rengaErrors "github.com/harunnryd/renga/internal/errors"
	"github.com/harunnryd/renga/internal/model/contract"
	"github.com/harunnryd/renga/internal/pathutil"

	"github.com/natefinch/atomic"
)

// Export writes a conversation snapshot to a markdown file. The write is
// atomic: a reader never sees a half-written transcript.
func Export(path, conversationID string, msgs []contract.Message) (string, error) {
	resolved, err := pathutil.Expand(path)
	if err != nil {
		return "", rengaErrors.Wrap(err, "resolve transcript path")
	}

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", rengaErrors.Wrap(err, "create transcript directory")
	}

	content := Render(conversationID, msgs, time.Now())
	if err := atomic.WriteFile(resolved, bytes.NewReader([]byte(content))); err != nil {
		return "", rengaErrors.Wrap(err, "write transcript")
	}

	return resolved, nil
}

// DefaultFilename names a transcript after its conversation and export time.
func DefaultFilename(conversationID string, now time.Time) string {
	return fmt.Sprintf("renga-%s-%s.md", strings.ToLower(conversationID), now.Format("20060102-150405"))
}

// Render produces the markdown transcript body.
func Render(conversationID string, msgs []contract.Message, now time.Time) string {
	var sb strings.Builder

	sb.WriteString("# Conversation " + conversationID + "\n\n")
	sb.WriteString("Exported: " + now.Format(time.RFC3339) + "\n\n")

	for _, msg := range msgs {
		switch msg.Role {
		case contract.RoleUser:
			sb.WriteString("## User\n\n")
			sb.WriteString(msg.Content + "\n\n")
		case contract.RoleAssistant:
			sb.WriteString("## Assistant\n\n")
			if msg.Content != "" {
				sb.WriteString(msg.Content + "\n\n")
			}
			for _, call := range msg.ToolCalls {
				sb.WriteString(fmt.Sprintf("- Tool call `%s` (`%s`): `%s`\n", call.Name, call.ID, call.Input))
			}
			if len(msg.ToolCalls) > 0 {
				sb.WriteString("\n")
			}
		case contract.RoleTool:
			sb.WriteString(fmt.Sprintf("### Tool result (`%s`)\n\n", msg.ToolCallID))
			sb.WriteString("```json\n" + msg.Content + "\n```\n\n")
		}
	}

	return sb.String()
}
