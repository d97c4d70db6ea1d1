package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/modelkit/internal/cli/ui"
	"github.com/conduit-lang/modelkit/internal/orm/definition"
	"github.com/conduit-lang/modelkit/internal/orm/metadata"
)

type inspectOptions struct {
	entity string
	format string
	deps   bool
}

// NewInspectCommand creates the inspect command
func NewInspectCommand(opts *globalOptions) *cobra.Command {
	inspect := &inspectOptions{}
	cmd := &cobra.Command{
		Use:   "inspect <definition.yaml>",
		Short: "Print the finalized model of a definition",
		Long: `Build and finalize the model described by a definition file and print its
entity types, properties, keys, relationships and the runtime slots assigned to
every member.`,
		Example: `  # Show every entity type
  modelkit inspect model.yaml

  # Show one entity type
  modelkit inspect model.yaml --entity Post

  # Output in JSON format for tooling
  modelkit inspect model.yaml --format json

  # Show the dependency order of the definitions
  modelkit inspect model.yaml --deps`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if inspect.format != "table" && inspect.format != "json" {
				return fmt.Errorf("unknown format %q: use table or json", inspect.format)
			}
			env, err := opts.load(cmd)
			if err != nil {
				return err
			}
			loaded, err := buildModel(cmd, env, args[0])
			if err != nil {
				return err
			}

			types := loaded.model.EntityTypes()
			if inspect.entity != "" {
				et := loaded.model.FindEntityType(definition.Name(inspect.entity))
				if et == nil {
					names := make([]string, len(types))
					for i, t := range types {
						names[i] = t.Name()
					}
					fmt.Fprint(cmd.ErrOrStderr(), ui.EntityTypeNotFoundError(inspect.entity, args[0],
						ui.Suggest(inspect.entity, names, 3), env.noColor))
					return reported{fmt.Errorf("entity type %s not found", inspect.entity)}
				}
				types = []*metadata.EntityType{et}
			}

			w := cmd.OutOrStdout()
			if inspect.format == "json" {
				return writeModelJSON(w, loaded.model, types)
			}
			writeModelTable(w, loaded.model, types, env.noColor)
			if inspect.deps {
				fmt.Fprint(w, definition.Analyze(loaded.doc.Entities).String())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&inspect.entity, "entity", "", "Only show this entity type")
	cmd.Flags().StringVar(&inspect.format, "format", "table", "Output format: table or json")
	cmd.Flags().BoolVar(&inspect.deps, "deps", false, "Show the dependency order of the definitions")
	return cmd
}

func writeModelTable(w io.Writer, fm *metadata.FinalizedModel, types []*metadata.EntityType, noColor bool) {
	summary := ui.NewKeyValueTable(w, noColor)
	summary.AddRow("Model", fm.ID().String())
	summary.AddRow("Entity types", strconv.Itoa(len(fm.EntityTypes())))
	summary.AddRow("Change tracking", fm.ChangeTrackingStrategy().String())
	summary.Render()

	for _, et := range types {
		fmt.Fprintln(w)
		title := et.Name()
		if base := et.BaseType(); base != nil {
			title += " : " + base.Name()
		}
		ui.Header(w, title, noColor)

		props := ui.NewTable(w, noColor, "Property", "Type", "Key", "FK", "Nullable", "Shadow", "Source", "Slots")
		for _, p := range et.Properties() {
			props.AddRow(p.Name(), typeName(p), ui.Flag(p.IsKey()), ui.Flag(p.IsForeignKey()),
				ui.Flag(p.IsNullable()), ui.Flag(p.IsShadow()), p.ConfigurationSource().String(), slots(p.Indexes()))
		}
		props.Render()

		if navs := et.Navigations(); len(navs) > 0 {
			fmt.Fprintln(w)
			table := ui.NewTable(w, noColor, "Navigation", "Target", "Collection", "Inverse", "Slots")
			for _, n := range navs {
				inverse := "-"
				if inv := n.Inverse(); inv != nil {
					inverse = inv.Name()
				}
				table.AddRow(n.Name(), n.TargetType().Name(), ui.Flag(n.IsCollection()), inverse, slots(n.Indexes()))
			}
			table.Render()
		}

		details := ui.NewKeyValueTable(w, noColor)
		for _, k := range et.Keys() {
			label := "Key"
			if k.IsPrimaryKey() {
				label = "Primary key"
			}
			details.AddRow(label, k.String())
		}
		for _, fk := range et.ForeignKeys() {
			required := "optional"
			if fk.IsRequired() {
				required = "required"
			}
			details.AddRow("Foreign key", fmt.Sprintf("%s (%s, %s)", fk, required, fk.DeleteBehavior()))
		}
		for _, idx := range et.Indexes() {
			label := "Index"
			if idx.IsUnique() {
				label = "Unique index"
			}
			details.AddRow(label, idx.String())
		}
		if disc := et.Discriminator(); disc != nil {
			value, _ := et.DiscriminatorValue()
			details.AddRow("Discriminator", fmt.Sprintf("%s = %v", disc.Name(), value))
		}
		if c := et.Counts(); c != nil {
			details.AddRow("Counts", fmt.Sprintf("properties=%d navigations=%d original=%d shadow=%d relationship=%d generated=%d",
				c.PropertyCount, c.NavigationCount, c.OriginalValueCount, c.ShadowCount, c.RelationshipCount, c.StoreGeneratedCount))
		}
		if details.Len() > 0 {
			fmt.Fprintln(w)
			details.Render()
		}
	}
}

func typeName(p *metadata.Property) string {
	if p.ClrType() == nil {
		return "-"
	}
	return p.ClrType().String()
}

// slots formats index/shadow/original/relationship/store-generated slots
func slots(s metadata.PropertyIndexes) string {
	parts := make([]string, 0, 5)
	for _, v := range []int{s.Index, s.ShadowIndex, s.OriginalValueIndex, s.RelationshipIndex, s.StoreGeneratedIndex} {
		if v < 0 {
			parts = append(parts, "-")
		} else {
			parts = append(parts, strconv.Itoa(v))
		}
	}
	return strings.Join(parts, "/")
}

type entityJSON struct {
	Name        string                   `json:"name"`
	Base        string                   `json:"base,omitempty"`
	Keyless     bool                     `json:"keyless,omitempty"`
	Properties  []propertyJSON           `json:"properties"`
	Navigations []navigationJSON         `json:"navigations,omitempty"`
	Keys        []string                 `json:"keys,omitempty"`
	ForeignKeys []string                 `json:"foreign_keys,omitempty"`
	Counts      *metadata.PropertyCounts `json:"counts,omitempty"`
}

type propertyJSON struct {
	Name     string                   `json:"name"`
	Type     string                   `json:"type"`
	Nullable bool                     `json:"nullable"`
	Shadow   bool                     `json:"shadow"`
	Source   string                   `json:"source"`
	Slots    metadata.PropertyIndexes `json:"slots"`
}

type navigationJSON struct {
	Name       string                   `json:"name"`
	Target     string                   `json:"target"`
	Collection bool                     `json:"collection"`
	Slots      metadata.PropertyIndexes `json:"slots"`
}

type modelJSON struct {
	ID             string       `json:"id"`
	ChangeTracking string       `json:"change_tracking"`
	EntityTypes    []entityJSON `json:"entity_types"`
}

func writeModelJSON(w io.Writer, fm *metadata.FinalizedModel, types []*metadata.EntityType) error {
	out := modelJSON{
		ID:             fm.ID().String(),
		ChangeTracking: fm.ChangeTrackingStrategy().String(),
		EntityTypes:    make([]entityJSON, 0, len(types)),
	}
	for _, et := range types {
		e := entityJSON{Name: et.Name(), Keyless: et.IsKeyless(), Counts: et.Counts()}
		if base := et.BaseType(); base != nil {
			e.Base = base.Name()
		}
		for _, p := range et.Properties() {
			e.Properties = append(e.Properties, propertyJSON{
				Name:     p.Name(),
				Type:     typeName(p),
				Nullable: p.IsNullable(),
				Shadow:   p.IsShadow(),
				Source:   p.ConfigurationSource().String(),
				Slots:    p.Indexes(),
			})
		}
		for _, n := range et.Navigations() {
			e.Navigations = append(e.Navigations, navigationJSON{
				Name:       n.Name(),
				Target:     n.TargetType().Name(),
				Collection: n.IsCollection(),
				Slots:      n.Indexes(),
			})
		}
		for _, k := range et.Keys() {
			e.Keys = append(e.Keys, k.String())
		}
		for _, fk := range et.ForeignKeys() {
			e.ForeignKeys = append(e.ForeignKeys, fk.String())
		}
		out.EntityTypes = append(out.EntityTypes, e)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
