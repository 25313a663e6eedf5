package wallet

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/term"
)

// Prompter 向用户索取账户口令
//
// 用户取消（空输入、EOF）时返回 ErrUserRejected。
type Prompter interface {
	Passphrase(ctx context.Context, account common.Address) (string, error)
}

// PrompterFunc 函数适配器
type PrompterFunc func(ctx context.Context, account common.Address) (string, error)

// Passphrase 实现 Prompter
func (f PrompterFunc) Passphrase(ctx context.Context, account common.Address) (string, error) {
	return f(ctx, account)
}

// TerminalPrompter 终端口令输入（不回显）
type TerminalPrompter struct {
	In  *os.File
	Out io.Writer
}

// NewTerminalPrompter 使用标准输入/标准错误
func NewTerminalPrompter() *TerminalPrompter {
	return &TerminalPrompter{In: os.Stdin, Out: os.Stderr}
}

// Passphrase 读取口令；非终端输入时按行读取
func (p *TerminalPrompter) Passphrase(ctx context.Context, account common.Address) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	fmt.Fprintf(p.Out, "请输入账户 %s 的密码: ", account.Hex())

	var (
		passphrase string
		err        error
	)
	fd := int(p.In.Fd())
	if term.IsTerminal(fd) {
		var raw []byte
		raw, err = term.ReadPassword(fd)
		fmt.Fprintln(p.Out)
		passphrase = string(raw)
	} else {
		passphrase, err = bufio.NewReader(p.In).ReadString('\n')
		if err == io.EOF && passphrase != "" {
			err = nil
		}
	}
	if err == io.EOF {
		return "", ErrUserRejected
	}
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}

	passphrase = strings.TrimRight(passphrase, "\r\n")
	if passphrase == "" {
		return "", ErrUserRejected
	}
	return passphrase, nil
}
