// Package ui 提供基础 UI 组件库
package ui

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/pterm/pterm"
)

// Components UI组件接口，定义所有可用的UI组件
type Components interface {
	// === 数据展示组件 ===

	// ShowTable 显示表格数据
	// title: 表格标题（可为空）
	// data: 表格数据，第一行为表头
	ShowTable(title string, data [][]string) error

	// ShowKeyValuePairs 显示键值对，按键排序
	ShowKeyValuePairs(title string, pairs map[string]string) error

	// === 状态显示组件 ===

	// ShowSuccess 显示成功消息
	ShowSuccess(message string) error

	// ShowError 显示错误消息
	ShowError(message string) error

	// ShowWarning 显示警告消息
	ShowWarning(message string) error

	// ShowInfo 显示信息消息
	ShowInfo(message string) error

	// ShowHeader 显示标题
	ShowHeader(text string) error
}

// ErrEmptyTable 表格没有数据
var ErrEmptyTable = errors.New("table has no rows")

// ptermComponents 基于 pterm 的实现
type ptermComponents struct {
	mu     sync.Mutex
	out    io.Writer
	logger Logger
}

// NewComponents 创建输出到 stderr 的组件，避免污染 stdout 上的结果
func NewComponents(logger Logger) Components {
	return NewComponentsWithWriter(os.Stderr, logger)
}

// NewComponentsWithWriter 创建输出到指定 writer 的组件
func NewComponentsWithWriter(out io.Writer, logger Logger) Components {
	if logger == nil {
		logger = NoopLogger()
	}
	return &ptermComponents{out: out, logger: logger}
}

func (c *ptermComponents) write(s string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := io.WriteString(c.out, s)
	return err
}

func (c *ptermComponents) ShowTable(title string, data [][]string) error {
	if len(data) == 0 {
		return ErrEmptyTable
	}
	rendered, err := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData(data)).Srender()
	if err != nil {
		return fmt.Errorf("render table: %w", err)
	}
	if title != "" {
		rendered = pterm.DefaultSection.Sprint(title) + rendered
	}
	return c.write(rendered + "\n")
}

func (c *ptermComponents) ShowKeyValuePairs(title string, pairs map[string]string) error {
	if len(pairs) == 0 {
		return ErrEmptyTable
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	data := make(pterm.TableData, 0, len(keys))
	for _, k := range keys {
		data = append(data, []string{k, pairs[k]})
	}
	rendered, err := pterm.DefaultTable.WithData(data).Srender()
	if err != nil {
		return fmt.Errorf("render pairs: %w", err)
	}
	if title != "" {
		rendered = pterm.DefaultSection.Sprint(title) + rendered
	}
	return c.write(rendered + "\n")
}

func (c *ptermComponents) ShowSuccess(message string) error {
	c.logger.Debugf("ui success: %s", message)
	return c.write(pterm.Success.Sprintln(message))
}

func (c *ptermComponents) ShowError(message string) error {
	c.logger.Debugf("ui error: %s", message)
	return c.write(pterm.Error.Sprintln(message))
}

func (c *ptermComponents) ShowWarning(message string) error {
	c.logger.Debugf("ui warning: %s", message)
	return c.write(pterm.Warning.Sprintln(message))
}

func (c *ptermComponents) ShowInfo(message string) error {
	c.logger.Debugf("ui info: %s", message)
	return c.write(pterm.Info.Sprintln(message))
}

func (c *ptermComponents) ShowHeader(text string) error {
	return c.write(pterm.DefaultHeader.Sprintln(text))
}
