package adapters

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"gopkg.in/yaml.v3"

	"fleet-manifests/internal/ports"
	"fleet-manifests/internal/types"
)

const (
	PlanLockFile         = "plan.lock"
	ResolutionReportFile = "resolution.report"
)

// OutputFileAdapter writes resolution plans into Dir.
type OutputFileAdapter struct {
	Dir string
}

func NewOutputFileAdapter(dir string) OutputFileAdapter {
	return OutputFileAdapter{Dir: dir}
}

// WritePlanLock writes one "action name[=version]" line per plan item,
// keeping plan order: it is the order the client applies them in.
func (a OutputFileAdapter) WritePlanLock(result types.ResolutionResult) error {
	path, err := a.ensurePath(PlanLockFile)
	if err != nil {
		return err
	}
	var b strings.Builder
	for _, item := range result.Plan.Items {
		b.WriteString(string(item.Action))
		b.WriteByte(' ')
		b.WriteString(item.Name)
		if item.Version != "" {
			b.WriteByte('=')
			b.WriteString(item.Version)
		}
		b.WriteByte('\n')
	}
	return writeOutput(path, []byte(b.String()))
}

func (a OutputFileAdapter) WriteResolutionReport(report types.ResolutionReport) error {
	path, err := a.ensurePath(ResolutionReportFile)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(report)
	if err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode resolution report").
			WithCause(err)
	}
	return writeOutput(path, data)
}

func (a OutputFileAdapter) ensurePath(filename string) (string, error) {
	if a.Dir == "" {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("output directory is empty")
	}
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create output directory").
			WithCause(err)
	}
	return filepath.Join(a.Dir, filename), nil
}

func writeOutput(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg(fmt.Sprintf("failed to write %s", filepath.Base(path))).
			WithCause(err)
	}
	return nil
}

var _ ports.PlanWriterPort = OutputFileAdapter{}
