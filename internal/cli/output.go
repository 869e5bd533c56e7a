package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"gopkg.in/yaml.v3"

	"github.com/TimurManjosov/goruled/internal/rules"
	"github.com/TimurManjosov/goruled/internal/templates"
)

// OutputFormat specifies the output format for CLI commands
type OutputFormat string

const (
	FormatTable OutputFormat = "table"
	FormatJSON  OutputFormat = "json"
	FormatYAML  OutputFormat = "yaml"
)

// PrintRules outputs rules in the specified format
func PrintRules(list []rules.Rule, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]rules.Rule{"rules": list})
	case FormatYAML:
		return printYAML(list)
	case FormatTable:
		return printRuleTable(list)
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintRule outputs a single rule in the specified format
func PrintRule(rule *rules.Rule, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(rule)
	case FormatYAML:
		return printYAML(rule)
	case FormatTable:
		return printRuleTable([]rules.Rule{*rule})
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

// PrintTemplates outputs the template catalog in the specified format
func PrintTemplates(choices []templates.Choice, format OutputFormat) error {
	switch format {
	case FormatJSON:
		return printJSON(map[string][]templates.Choice{"templates": choices})
	case FormatYAML:
		return printYAML(choices)
	case FormatTable:
		table := tablewriter.NewWriter(os.Stdout)
		table.Header("Reference", "Label")
		for _, choice := range choices {
			table.Append(choice.Reference, choice.Label)
		}
		return table.Render()
	default:
		return fmt.Errorf("unsupported format: %s", format)
	}
}

func printJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

func printYAML(data interface{}) error {
	encoder := yaml.NewEncoder(os.Stdout)
	defer encoder.Close()
	encoder.SetIndent(2)
	return encoder.Encode(data)
}

func printRuleTable(list []rules.Rule) error {
	table := tablewriter.NewWriter(os.Stdout)
	table.Header("ID", "Description", "Target", "Condition", "Action", "Updated At")

	for _, r := range list {
		description := r.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}
		condition := "-"
		if r.Condition != nil {
			condition = string(r.Condition.Kind)
		}
		action := "-"
		if r.Action != nil {
			action = string(r.Action.Kind)
		}
		target := r.TargetEntityType
		if target == "" {
			target = "(generic)"
		}

		table.Append(
			r.ID,
			description,
			target,
			condition,
			action,
			r.UpdatedAt.Format("2006-01-02 15:04"),
		)
	}

	return table.Render()
}
