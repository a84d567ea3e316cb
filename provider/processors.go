package provider

import (
	"errors"
	"fmt"
	"strings"

	"streamedit/client/openai"
	"streamedit/logger"
	"streamedit/utils"
)

// Preprocessor processes the context before prompt building.
// Returning an error fails the request.
type Preprocessor func(p *Provider, ctx *Context) error

// PromptBuilder builds the chat request from the context
type PromptBuilder func(p *Provider, ctx *Context) *openai.ChatRequest

var ErrEmptyInstruction = errors.New("empty instruction")

// --- Preprocessors ---

// RequireInstruction rejects requests without an instruction
func RequireInstruction() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		if strings.TrimSpace(ctx.Request.Instruction) == "" {
			return ErrEmptyInstruction
		}
		return nil
	}
}

// TrimContent returns a preprocessor that trims the document to the context
// budget around the target range
func TrimContent() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		req := ctx.Request
		lines := strings.Split(req.Content, "\n")
		ctx.TotalLines = len(lines)

		startRow, endRow := req.CursorRow-1, req.CursorRow-1
		if sel := req.Selection; !(sel.Start == 0 && sel.End >= len(req.Content)) {
			start := max(0, min(sel.Start, len(req.Content)))
			end := max(start, min(sel.End, len(req.Content)))
			startRow = strings.Count(req.Content[:start], "\n")
			endRow = strings.Count(req.Content[:end], "\n")
		}

		ctx.Lines, ctx.WindowStart, ctx.Trimmed = utils.TrimContentAroundRange(lines, startRow, endRow, p.Config.MaxContextTokens)
		if ctx.Trimmed {
			logger.Debug("%s: trimmed context to lines %d-%d of %d", p.Name, ctx.WindowStart+1, ctx.WindowStart+len(ctx.Lines), ctx.TotalLines)
		}
		return nil
	}
}

// AttachHistory adds the previous exchanges for the same file, newest last,
// within a quarter of the context budget
func AttachHistory() Preprocessor {
	return func(p *Provider, ctx *Context) error {
		if p.History == nil {
			return nil
		}
		turns := p.History.Turns(ctx.Request.FilePath)
		ctx.History = utils.TrimExchanges(turns, p.Config.MaxContextTokens/4)
		return nil
	}
}

// --- Prompt builders ---

const systemPrompt = `You are a code editing assistant. You edit one file at a time.

For every change, output a SEARCH/REPLACE block inside a code fence whose info string is "language:path":

` + "```" + `go:path/to/file.go
<<<<<<< SEARCH
exact lines from the file
=======
replacement lines
>>>>>>> REPLACE
` + "```" + `

Rules:
1. The SEARCH part must match the current file exactly, including indentation.
2. Include enough context in SEARCH to locate the change uniquely, but keep it short.
3. Use several small blocks for changes far apart; never repeat a block.
4. To delete code, leave the REPLACE part empty.
5. Only change what the instruction asks for. If a selection is given, only edit inside it.
6. If nothing needs to change, say so briefly and output no blocks.`

// SearchReplacePrompt builds a chat request asking for SEARCH/REPLACE blocks
func SearchReplacePrompt() PromptBuilder {
	return func(p *Provider, ctx *Context) *openai.ChatRequest {
		req := ctx.Request
		messages := []openai.Message{{Role: "system", Content: systemPrompt}}

		for _, t := range ctx.History {
			messages = append(messages,
				openai.Message{Role: "user", Content: t.Prompt},
				openai.Message{Role: "assistant", Content: t.Response},
			)
		}

		var sb strings.Builder
		lang := req.Language
		if lang == "" {
			lang = "txt"
		}
		fmt.Fprintf(&sb, "File: %s\n", req.FilePath)
		if ctx.Trimmed {
			fmt.Fprintf(&sb, "(showing lines %d-%d of %d)\n", ctx.WindowStart+1, ctx.WindowStart+len(ctx.Lines), ctx.TotalLines)
		}
		fmt.Fprintf(&sb, "```%s:%s\n%s\n```\n", lang, req.FilePath, strings.Join(ctx.Lines, "\n"))

		if sel := req.Selection; sel.Start < sel.End && !(sel.Start == 0 && sel.End >= len(req.Content)) {
			fmt.Fprintf(&sb, "\nSelected code:\n```%s\n%s\n```\n", lang, req.Content[sel.Start:min(sel.End, len(req.Content))])
		}
		fmt.Fprintf(&sb, "\nInstruction: %s", strings.TrimSpace(req.Instruction))

		messages = append(messages, openai.Message{Role: "user", Content: sb.String()})

		return &openai.ChatRequest{
			Model:       p.Config.ProviderModel,
			Messages:    messages,
			Temperature: p.Config.ProviderTemperature,
			MaxTokens:   p.Config.ProviderMaxTokens,
		}
	}
}
