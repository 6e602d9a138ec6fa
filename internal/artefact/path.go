package artefact

import (
	"github.com/ashourz/AlgoRoyale-sub002/internal/columns"
	"github.com/ashourz/AlgoRoyale-sub002/internal/store"
	"github.com/ashourz/AlgoRoyale-sub002/internal/types"
)

// OptimizationPath is <base>/signal_opt/<strategy>/<symbol>/<window>/optimization_result.json.
func OptimizationPath(st *store.Store, strategy, symbol string, window types.Window) string {
	return st.Path(string(columns.StageSignalOpt), strategy, symbol, window.ID(), OptimizationFile)
}

// EvaluationPath is <base>/signal_eval/<strategy>/<symbol>/evaluation_result.json.
func EvaluationPath(st *store.Store, strategy, symbol string) string {
	return st.Path(string(columns.StageSignalEval), strategy, symbol, EvaluationFile)
}

// SymbolSignalsPath is <base>/symbol_summary/<symbol>/symbol_signals.json.
func SymbolSignalsPath(st *store.Store, symbol string) string {
	return st.Path(string(columns.StageSymbolSummary), symbol, SymbolSignalsFile)
}

// PortfolioPath is <base>/<stage>/<window>/portfolio_result.json.
func PortfolioPath(st *store.Store, stage columns.Stage, window types.Window) string {
	return st.Path(string(stage), window.ID(), PortfolioFile)
}
