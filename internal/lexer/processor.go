package lexer

import (
	"github.com/solisoft/soli/internal/diagnostics"
	"github.com/solisoft/soli/internal/pipeline"
	"github.com/solisoft/soli/internal/token"
)

type LexerProcessor struct{}

func (lp *LexerProcessor) Process(ctx *pipeline.PipelineContext) *pipeline.PipelineContext {
	// A module served from the cache needs no front end
	if ctx.Compiled != nil {
		return ctx
	}
	l := New(ctx.SourceCode)
	var toks []token.Token
	for {
		tok := l.NextToken()
		if tok.Type == token.ILLEGAL {
			code := diagnostics.ErrL001
			if tok.Literal == "" {
				code = diagnostics.ErrL002
			}
			err := diagnostics.NewError(code, tok, "%s", l.LastError())
			err.File = ctx.FilePath
			ctx.Errors = append(ctx.Errors, err)
			continue
		}
		toks = append(toks, tok)
		if tok.Type == token.EOF {
			break
		}
	}
	ctx.TokenStream = toks
	return ctx
}
