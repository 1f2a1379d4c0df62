package solbc

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
	"go.uber.org/zap"
)

// AnchorError represents an error from Anchor framework
type AnchorError struct {
	Code        int    `json:"code"`
	Name        string `json:"name"`
	Msg         string `json:"msg"`
	ProgramID   string `json:"programId,omitempty"`
	Instruction int    `json:"instruction,omitempty"`
}

func (e *AnchorError) Error() string {
	return fmt.Sprintf("%s (%d): %s", e.Name, e.Code, e.Msg)
}

// Analysis is the structured view of a failed send or simulation.
type Analysis struct {
	Type             string       `json:"type"`
	Code             int          `json:"code,omitempty"`
	Message          string       `json:"message"`
	SimulationFailed bool         `json:"simulationFailed,omitempty"`
	Logs             []string     `json:"logs,omitempty"`
	AnchorError      *AnchorError `json:"anchorError,omitempty"`
	InstructionError interface{}  `json:"instructionError,omitempty"`
}

// ErrorAnalyzer provides methods to analyze Solana transaction errors
type ErrorAnalyzer struct {
	logger *zap.Logger
}

// NewErrorAnalyzer creates a new ErrorAnalyzer instance
func NewErrorAnalyzer(logger *zap.Logger) *ErrorAnalyzer {
	return &ErrorAnalyzer{
		logger: logger.Named("error-analyzer"),
	}
}

// AnalyzeRPCError analyzes a jsonrpc.RPCError and extracts detailed information
func (ea *ErrorAnalyzer) AnalyzeRPCError(err error) *Analysis {
	if err == nil {
		return &Analysis{Type: "none", Message: "No error provided"}
	}

	var rpcErr *jsonrpc.RPCError
	if !errors.As(err, &rpcErr) {
		return &Analysis{Type: "generic_error", Message: err.Error()}
	}

	result := &Analysis{
		Type:    "rpc_error",
		Code:    rpcErr.Code,
		Message: rpcErr.Message,
	}

	// Check if this is a transaction simulation error
	if !strings.Contains(rpcErr.Message, "Transaction simulation failed") {
		return result
	}
	result.SimulationFailed = true

	dataMap, ok := rpcErr.Data.(map[string]interface{})
	if !ok {
		return result
	}
	if logs, ok := dataMap["logs"].([]interface{}); ok {
		for _, entry := range logs {
			if s, ok := entry.(string); ok {
				result.Logs = append(result.Logs, s)
			}
		}
	}
	result.InstructionError = dataMap["err"]
	ea.attachAnchorError(result, result.Logs, result.InstructionError)
	return result
}

// AnalyzeSimulation builds an Analysis from a simulation that returned an error.
func (ea *ErrorAnalyzer) AnalyzeSimulation(txErr interface{}, logs []string) *Analysis {
	result := &Analysis{
		Type:             "simulation_error",
		Message:          fmt.Sprintf("%v", txErr),
		SimulationFailed: true,
		Logs:             logs,
		InstructionError: txErr,
	}
	ea.attachAnchorError(result, logs, txErr)
	return result
}

func (ea *ErrorAnalyzer) attachAnchorError(result *Analysis, logs []string, txErr interface{}) {
	anchorErr, ok := FindAnchorError(logs)
	if !ok {
		code, found := CustomErrorCode(txErr)
		if !found {
			return
		}
		anchorErr = &AnchorError{Code: int(code)}
	}
	result.AnchorError = anchorErr

	ea.logger.Warn("Anchor error detected",
		zap.Int("code", anchorErr.Code),
		zap.String("name", anchorErr.Name),
		zap.String("message", anchorErr.Msg))
}

// FindAnchorError returns the first Anchor error reported in logs.
func FindAnchorError(logs []string) (*AnchorError, bool) {
	for _, line := range logs {
		if strings.Contains(line, "AnchorError") {
			if anchorErr, ok := ParseAnchorErrorLog(line); ok {
				return anchorErr, true
			}
		}
	}
	return nil, false
}

// ParseAnchorErrorLog parses an Anchor error log string
// Example: "Program log: AnchorError occurred. Error Code: InstructionFallbackNotFound. Error Number: 101. Error Message: Fallback functions are not supported."
func ParseAnchorErrorLog(logStr string) (*AnchorError, bool) {
	result := &AnchorError{}

	num, ok := field(logStr, "Error Number:")
	if !ok {
		return nil, false
	}
	if _, err := fmt.Sscanf(num, "%d", &result.Code); err != nil {
		return nil, false
	}
	result.Name, _ = field(logStr, "Error Code:")

	if idx := strings.Index(logStr, "Error Message:"); idx >= 0 {
		result.Msg = strings.TrimSuffix(strings.TrimSpace(logStr[idx+len("Error Message:"):]), ".")
	}
	return result, true
}

// field returns the text between label and the next period.
func field(s, label string) (string, bool) {
	idx := strings.Index(s, label)
	if idx < 0 {
		return "", false
	}
	rest := s[idx+len(label):]
	if end := strings.Index(rest, "."); end >= 0 {
		rest = rest[:end]
	}
	return strings.TrimSpace(rest), true
}

// CustomErrorCode extracts N from a transaction error shaped like
// {"InstructionError":[idx,{"Custom":N}]}.
func CustomErrorCode(txErr interface{}) (uint32, bool) {
	m, ok := txErr.(map[string]interface{})
	if !ok {
		return 0, false
	}
	pair, ok := m["InstructionError"].([]interface{})
	if !ok || len(pair) != 2 {
		return 0, false
	}
	inner, ok := pair[1].(map[string]interface{})
	if !ok {
		return 0, false
	}
	switch v := inner["Custom"].(type) {
	case float64:
		return uint32(v), true
	case json.Number:
		n, err := v.Int64()
		return uint32(n), err == nil
	}
	return 0, false
}

// FormatErrorAnalysis formats the error analysis for logging or display
func (ea *ErrorAnalyzer) FormatErrorAnalysis(analysis *Analysis) string {
	jsonBytes, err := json.MarshalIndent(analysis, "", "  ")
	if err != nil {
		return fmt.Sprintf("Error formatting analysis: %v", err)
	}
	return string(jsonBytes)
}
