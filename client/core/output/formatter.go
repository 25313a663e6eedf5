// Package output provides output formatting functionality for client commands.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/cryptodevs/daogate/client/pkg/ux/ui"
)

// Format 输出格式
type Format string

const (
	// FormatJSON JSON格式（默认）
	FormatJSON Format = "json"
	// FormatPretty 美化JSON格式
	FormatPretty Format = "pretty"
	// FormatTable 表格格式
	FormatTable Format = "table"
	// FormatText 纯文本格式
	FormatText Format = "text"
)

// ParseFormat 解析 --output 参数
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatPretty, FormatTable, FormatText:
		return f, nil
	case "":
		return FormatJSON, nil
	default:
		return "", fmt.Errorf("unknown output format %q (json|pretty|table|text)", s)
	}
}

// Formatter 输出格式化器
type Formatter struct {
	format    Format
	writer    io.Writer     // 数据输出（JSON/表格等）
	table     ui.Components // 表格渲染，写到 writer
	status    ui.Components // 状态消息，写到 statusOut
	statusOut io.Writer
	logger    ui.Logger
	silent    bool
}

// NewFormatter 创建格式化器
func NewFormatter(format Format, writer io.Writer) *Formatter {
	if writer == nil {
		writer = os.Stdout
	}

	return &Formatter{
		format:    format,
		writer:    writer,
		table:     ui.NewComponentsWithWriter(writer, nil),
		status:    ui.NewComponents(nil), // 日志输出到 stderr（避免污染 JSON）
		statusOut: os.Stderr,
		logger:    ui.NoopLogger(),
	}
}

// SetLogger 状态消息同时写入调试日志
func (f *Formatter) SetLogger(logger ui.Logger) {
	if logger == nil {
		logger = ui.NoopLogger()
	}
	f.logger = logger
	f.table = ui.NewComponentsWithWriter(f.writer, logger)
	f.status = ui.NewComponentsWithWriter(f.statusOut, logger)
}

// SetLogWriter 设置状态消息输出目标（默认 stderr）
func (f *Formatter) SetLogWriter(writer io.Writer) {
	if writer == nil {
		writer = os.Stderr
	}
	f.statusOut = writer
	f.status = ui.NewComponentsWithWriter(writer, f.logger)
}

// SetSilent 设置静默模式
func (f *Formatter) SetSilent(silent bool) {
	f.silent = silent
}

// Format 当前格式
func (f *Formatter) Format() Format {
	return f.format
}

// Print 打印输出
func (f *Formatter) Print(data interface{}) error {
	if f.silent {
		return nil
	}

	switch f.format {
	case FormatPretty:
		return f.printJSON(data, true)
	case FormatTable:
		return f.printTable(data)
	case FormatText:
		return f.printText(data)
	default:
		return f.printJSON(data, false)
	}
}

// printJSON 打印JSON格式
func (f *Formatter) printJSON(data interface{}, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}

	if _, err := fmt.Fprintln(f.writer, string(output)); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// printTable 打印表格格式
//
// 数据先按 JSON 规范化：对象打印为键值表，对象数组打印为多列表，其余降级为美化 JSON。
func (f *Formatter) printTable(data interface{}) error {
	generic, err := normalize(data)
	if err != nil {
		return err
	}

	switch v := generic.(type) {
	case map[string]interface{}:
		if len(v) == 0 {
			return f.printJSON(data, true)
		}
		pairs := make(map[string]string, len(v))
		for key, value := range v {
			pairs[key] = formatValue(value)
		}
		return f.table.ShowKeyValuePairs("", pairs)
	case []interface{}:
		rows, ok := objectRows(v)
		if !ok {
			return f.printJSON(data, true)
		}
		if len(rows) == 0 {
			_, err := fmt.Fprintln(f.writer, "(empty)")
			return err
		}
		return f.table.ShowTable("", mapSliceTable(rows))
	default:
		return f.printJSON(data, true)
	}
}

// printText 打印纯文本格式
func (f *Formatter) printText(data interface{}) error {
	if s, ok := data.(fmt.Stringer); ok {
		data = s.String()
	}
	if _, err := fmt.Fprintf(f.writer, "%v\n", data); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}

// PrintSuccess 打印成功消息（输出到 stderr，避免污染 JSON）
func (f *Formatter) PrintSuccess(message string) {
	if f.silent {
		return
	}
	_ = f.status.ShowSuccess(message)
}

// PrintError 打印错误消息（静默模式下也输出）
func (f *Formatter) PrintError(err error) {
	_ = f.status.ShowError(fmt.Sprintf("Error: %v", err))
}

// PrintWarning 打印警告消息
func (f *Formatter) PrintWarning(message string) {
	if f.silent {
		return
	}
	_ = f.status.ShowWarning(message)
}

// PrintInfo 打印信息消息
func (f *Formatter) PrintInfo(message string) {
	if f.silent {
		return
	}
	_ = f.status.ShowInfo(message)
}

// Notify 实现 ui.Notifier，用于网关的无钱包提示
func (f *Formatter) Notify(message string) {
	f.PrintWarning(message)
}

// ===== 辅助函数 =====

// normalize 经 JSON 往返得到 map/slice/基础类型
func normalize(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("marshal json: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic interface{}
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("unmarshal json: %w", err)
	}
	return generic, nil
}

func objectRows(items []interface{}) ([]map[string]interface{}, bool) {
	rows := make([]map[string]interface{}, 0, len(items))
	for _, item := range items {
		row, ok := item.(map[string]interface{})
		if !ok {
			return nil, false
		}
		rows = append(rows, row)
	}
	return rows, true
}

// mapSliceTable 首行为表头，列按首次出现顺序
func mapSliceTable(rows []map[string]interface{}) [][]string {
	columns := extractColumns(rows)
	table := make([][]string, 0, len(rows)+1)
	table = append(table, columns)
	for _, row := range rows {
		values := make([]string, len(columns))
		for i, col := range columns {
			if val, ok := row[col]; ok {
				values[i] = formatValue(val)
			} else {
				values[i] = "-"
			}
		}
		table = append(table, values)
	}
	return table
}

// formatValue 格式化值
func formatValue(value interface{}) string {
	switch v := value.(type) {
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	case nil:
		return "-"
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(data)
	}
}

// extractColumns 提取所有列；同一行内按字母序，跨行按首次出现顺序
func extractColumns(data []map[string]interface{}) []string {
	columnSet := make(map[string]bool)
	columns := make([]string, 0)

	for _, row := range data {
		keys := make([]string, 0, len(row))
		for key := range row {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if !columnSet[key] {
				columnSet[key] = true
				columns = append(columns, key)
			}
		}
	}

	return columns
}

// SuccessOutput 成功输出结构
type SuccessOutput struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// NewSuccessOutput 创建成功输出
func NewSuccessOutput(data interface{}, message string) *SuccessOutput {
	return &SuccessOutput{
		Success: true,
		Data:    data,
		Message: message,
	}
}
