package logger

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/fatih/color"
	"go.uber.org/zap"
	"go.uber.org/zap/buffer"
	"go.uber.org/zap/zapcore"
)

// prettyEncoder writes a colored console line followed by the entry fields as indented JSON.
type prettyEncoder struct {
	zapcore.Encoder
	fields zapcore.Encoder
	pool   buffer.Pool
}

func newPrettyEncoder(cfg zapcore.EncoderConfig) *prettyEncoder {
	return &prettyEncoder{
		Encoder: zapcore.NewConsoleEncoder(cfg),
		fields:  zapcore.NewJSONEncoder(zapcore.EncoderConfig{}),
		pool:    buffer.NewPool(),
	}
}

func (e *prettyEncoder) Clone() zapcore.Encoder {
	return &prettyEncoder{
		Encoder: e.Encoder.Clone(),
		fields:  e.fields.Clone(),
		pool:    e.pool,
	}
}

func (e *prettyEncoder) EncodeEntry(entry zapcore.Entry, fields []zapcore.Field) (*buffer.Buffer, error) {
	line, err := e.Encoder.EncodeEntry(entry, nil)
	if err != nil {
		return nil, err
	}
	out := colorizeLevel(strings.TrimRight(line.String(), "\n"), entry.Level)
	line.Free()

	if len(fields) > 0 {
		fieldBuf, encErr := e.fields.EncodeEntry(zapcore.Entry{}, fields)
		if encErr != nil {
			return nil, encErr
		}

		var asMap map[string]any
		if json.Unmarshal(fieldBuf.Bytes(), &asMap) == nil && len(asMap) > 0 {
			if indented, mErr := json.MarshalIndent(asMap, "", "  "); mErr == nil {
				out += "\n" + string(indented)
			}
		}
		fieldBuf.Free()
	}

	buf := e.pool.Get()
	buf.AppendString(out)
	buf.AppendString("\n")
	return buf, nil
}

func colorizeLevel(line string, level zapcore.Level) string {
	var c *color.Color

	switch {
	case level == TraceLevel:
		c = color.New(color.FgHiBlack)
	case level == zapcore.DebugLevel:
		c = color.New(color.FgCyan)
	case level == zapcore.InfoLevel:
		c = color.New(color.FgGreen)
	case level == zapcore.WarnLevel:
		c = color.New(color.FgYellow)
	case level >= zapcore.ErrorLevel:
		c = color.New(color.FgRed, color.Bold)
	default:
		return line
	}

	label := "TRACE"
	if level != TraceLevel {
		label = level.CapitalString()
	}
	return strings.Replace(line, label, c.Sprint(label), 1)
}

func newPrettyLogger(cfg *zap.Config) *zap.Logger {
	core := zapcore.NewCore(newPrettyEncoder(cfg.EncoderConfig), zapcore.AddSync(os.Stdout), cfg.Level)
	return zap.New(core, zap.ErrorOutput(zapcore.AddSync(os.Stderr)))
}
