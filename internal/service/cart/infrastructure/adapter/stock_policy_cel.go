package adapter

import (
	"context"

	"github.com/google/cel-go/cel"
	"github.com/pkg/errors"

	"shopcart/internal/service/cart/domain/port"
)

// StockPolicyCEL 用 CEL 表达式判断库存是否足够，例如 "requested <= available - 2"。
// 可用变量：product_id、requested、available，均为 int。
type StockPolicyCEL struct {
	expr    string
	program cel.Program
}

// NewStockPolicyCEL 编译表达式，表达式必须返回 bool
func NewStockPolicyCEL(expr string) (*StockPolicyCEL, error) {
	env, err := cel.NewEnv(
		cel.Variable("product_id", cel.IntType),
		cel.Variable("requested", cel.IntType),
		cel.Variable("available", cel.IntType),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create cel env")
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, errors.Wrapf(iss.Err(), "compile stock rule %q", expr)
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, errors.Errorf("stock rule %q must return bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, errors.Wrapf(err, "build stock rule %q", expr)
	}
	return &StockPolicyCEL{expr: expr, program: program}, nil
}

// Allow 实现 port.StockPolicy
func (p *StockPolicyCEL) Allow(ctx context.Context, check port.StockCheck) (bool, error) {
	out, _, err := p.program.ContextEval(ctx, map[string]any{
		"product_id": check.ProductID,
		"requested":  int64(check.Requested),
		"available":  int64(check.Available),
	})
	if err != nil {
		return false, errors.Wrapf(err, "evaluate stock rule %q", p.expr)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, errors.Errorf("stock rule %q returned %T", p.expr, out.Value())
	}
	return allowed, nil
}
