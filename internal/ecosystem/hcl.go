package ecosystem

import (
	"fmt"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"github.com/zclconf/go-cty/cty/convert"
)

// hclEcosystemFile is the top level of an HCL ecosystem file:
//
//	app "api" {
//	  script      = "go"
//	  args        = "run main.go"
//	  cwd         = "./api"
//	  interpreter = "none"
//	  output      = "./logs/api.log"
//	}
//
// Anything else at the top level is rejected by the decoder.
type hclEcosystemFile struct {
	Apps []*hclApp `hcl:"app,block"`
}

type hclApp struct {
	Name        string            `hcl:"name,label"`
	Script      string            `hcl:"script,optional"`
	Args        cty.Value         `hcl:"args,optional"`
	Cwd         string            `hcl:"cwd,optional"`
	Interpreter string            `hcl:"interpreter,optional"`
	Output      string            `hcl:"output,optional"`
	Error       string            `hcl:"error,optional"`
	Env         map[string]string `hcl:"env,optional"`
}

func decodeHCL(filename string, buf []byte) ([]App, error) {
	if filename == "" {
		filename = "ecosystem.hcl"
	}

	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(buf, filename)
	if diags.HasErrors() {
		return nil, diags
	}

	var parsed hclEcosystemFile
	if diags := gohcl.DecodeBody(hclFile.Body, nil, &parsed); diags.HasErrors() {
		return nil, diags
	}

	if len(parsed.Apps) == 0 {
		return nil, fmt.Errorf("%w: no app blocks declared", ErrMissingApps)
	}

	apps := make([]App, 0, len(parsed.Apps))
	for _, block := range parsed.Apps {
		args, err := argsFromCty(block.Args)
		if err != nil {
			return nil, fmt.Errorf("app %q: %w", block.Name, err)
		}

		apps = append(apps, App{
			Name:        block.Name,
			Script:      block.Script,
			Args:        args,
			Cwd:         block.Cwd,
			Interpreter: block.Interpreter,
			Output:      block.Output,
			Error:       block.Error,
			Env:         block.Env,
		})
	}

	return apps, nil
}

func argsFromCty(value cty.Value) (Args, error) {
	if value.IsNull() {
		return Args{}, nil
	}

	if !value.IsWhollyKnown() {
		return Args{}, fmt.Errorf("%w: value must be known", ErrInvalidArgs)
	}

	ty := value.Type()
	if ty == cty.String {
		return ArgsFromLine(value.AsString()), nil
	}

	if !ty.IsListType() && !ty.IsTupleType() && !ty.IsSetType() {
		return Args{}, fmt.Errorf("%w: expected a string or a list of strings, got %s", ErrInvalidArgs, ty.FriendlyName())
	}

	list := make([]string, 0, value.LengthInt())
	for it := value.ElementIterator(); it.Next(); {
		_, element := it.Element()

		converted, err := convert.Convert(element, cty.String)
		if err != nil || converted.IsNull() {
			return Args{}, fmt.Errorf("%w: every argument must be a string", ErrInvalidArgs)
		}
		list = append(list, converted.AsString())
	}

	return ArgsFromList(list...), nil
}
