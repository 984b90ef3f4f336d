package agents

import (
	"errors"
	"fmt"
	"slices"

	"github.com/fyrsmithlabs/contentfactory/internal/content"
	"github.com/fyrsmithlabs/contentfactory/internal/retrieval"
	"github.com/fyrsmithlabs/contentfactory/internal/vectorstore"
)

// Name identifies an agent.
type Name string

const (
	Planner     Name = "planner"
	BlogWriter  Name = "blog_writer"
	XDevWriter  Name = "x_dev_writer"
	XCreator    Name = "x_creator_writer"
	LinkedIn    Name = "linkedin_writer"
	ArtDirector Name = "art_director"
	ImageMaker  Name = "image_maker"
	Editor      Name = "editor"
)

// Tool is an external capability an agent may use.
type Tool string

const (
	ToolRetrieval      Tool = "retrieval"
	ToolDuplicateCheck Tool = "duplicate_check"
	ToolImageService   Tool = "image_service"
	ToolShortener      Tool = "shortener"
	ToolQuickstart     Tool = "code_quickstart"
)

var (
	// ErrUnknownAgent is returned for a name missing from the registry.
	ErrUnknownAgent = errors.New("unknown agent")

	// ErrToolNotAllowed is returned when an agent uses a tool it did not declare.
	ErrToolNotAllowed = errors.New("tool not allowed for agent")
)

// Spec declares one agent.
type Spec struct {
	Name Name

	// Input names the input the agent expects, for prompts and docs.
	Input string

	// Produces is the artifact type, empty for the planner, art director
	// and editor whose outputs are not artifacts.
	Produces content.Type

	Tools     []Tool
	Retrieval []retrieval.Source

	// Instructions is the system prompt.
	Instructions string

	// Shape is an example of the JSON answer.
	Shape string
}

// Allows reports whether the agent declared tool.
func (s Spec) Allows(tool Tool) bool {
	return slices.Contains(s.Tools, tool)
}

// Registry maps agent names to their specs. It is built once and never
// modified.
type Registry struct {
	specs map[Name]Spec
}

// NewRegistry builds a registry. Duplicate names are an error.
func NewRegistry(specs ...Spec) (*Registry, error) {
	r := &Registry{specs: make(map[Name]Spec, len(specs))}
	for _, s := range specs {
		if s.Name == "" {
			return nil, fmt.Errorf("agent spec without name")
		}
		if _, dup := r.specs[s.Name]; dup {
			return nil, fmt.Errorf("agent %q registered twice", s.Name)
		}
		s.Tools = slices.Clone(s.Tools)
		s.Retrieval = slices.Clone(s.Retrieval)
		r.specs[s.Name] = s
	}
	return r, nil
}

// Lookup returns a copy of the spec for name.
func (r *Registry) Lookup(name Name) (Spec, error) {
	s, ok := r.specs[name]
	if !ok {
		return Spec{}, fmt.Errorf("%w: %s", ErrUnknownAgent, name)
	}
	s.Tools = slices.Clone(s.Tools)
	s.Retrieval = slices.Clone(s.Retrieval)
	return s, nil
}

// Names lists registered agents in a stable order.
func (r *Registry) Names() []Name {
	out := make([]Name, 0, len(r.specs))
	for n := range r.specs {
		out = append(out, n)
	}
	slices.Sort(out)
	return out
}

// WriterFor returns the writer agent for a text artifact type.
func WriterFor(t content.Type) (Name, bool) {
	switch t {
	case content.TypeBlog:
		return BlogWriter, true
	case content.TypeXDev:
		return XDevWriter, true
	case content.TypeXCreator:
		return XCreator, true
	case content.TypeLinkedIn:
		return LinkedIn, true
	}
	return "", false
}

// Plan tunes the retrieval of the default agents.
type Plan struct {
	// K is the depth of every source.
	K int

	// Floor is the similarity floor of every source.
	Floor float32

	// StyleMinScore is the performance score a style example needs.
	StyleMinScore float64

	// Editorial query overrides. Empty uses the defaults.
	BrandQuery string
	StyleQuery string
}

const (
	defaultBrandQuery = "brand visual guidelines"
	defaultStyleQuery = "style guide tone voice"
)

func (p Plan) style(t content.Type) retrieval.Source {
	return retrieval.Source{
		Collection:    vectorstore.CollectionStyleExamples,
		Filter:        vectorstore.Filter{retrieval.MetaContentType: string(t)},
		K:             p.K,
		MinSimilarity: p.Floor,
		MinScore:      p.StyleMinScore,
	}
}

func (p Plan) history(t content.Type) retrieval.Source {
	return retrieval.Source{
		Collection:    vectorstore.CollectionHistory,
		Filter:        vectorstore.Filter{retrieval.MetaContentType: string(t)},
		K:             p.K,
		MinSimilarity: p.Floor,
	}
}

func (p Plan) knowledge(category, query string) retrieval.Source {
	return retrieval.Source{
		Collection:    vectorstore.CollectionKnowledgeBase,
		Filter:        vectorstore.Filter{retrieval.MetaCategory: category},
		K:             p.K,
		MinSimilarity: p.Floor,
		Query:         query,
	}
}

func (p Plan) brand() retrieval.Source {
	return retrieval.Source{Collection: vectorstore.CollectionBrandAssets, K: p.K, MinSimilarity: p.Floor}
}

// DefaultRegistry declares the eight agents of a content run.
func DefaultRegistry(p Plan) *Registry {
	if p.BrandQuery == "" {
		p.BrandQuery = defaultBrandQuery
	}
	if p.StyleQuery == "" {
		p.StyleQuery = defaultStyleQuery
	}

	writer := func(name Name, t content.Type, instructions, shape string, extra ...retrieval.Source) Spec {
		tools := []Tool{ToolRetrieval}
		if t == content.TypeBlog {
			tools = append(tools, ToolQuickstart)
		} else {
			tools = append(tools, ToolShortener)
		}
		sources := []retrieval.Source{p.style(t), p.history(t)}
		sources = append(sources, extra...)
		return Spec{
			Name:         name,
			Input:        "brief",
			Produces:     t,
			Tools:        tools,
			Retrieval:    append(sources, p.brand()),
			Instructions: instructions,
			Shape:        shape,
		}
	}

	r, err := NewRegistry(
		Spec{
			Name:  Planner,
			Input: "product input",
			Tools: []Tool{ToolRetrieval, ToolDuplicateCheck},
			Retrieval: []retrieval.Source{
				p.knowledge(retrieval.CategoryProduct, ""),
				p.history(content.TypeBrief),
			},
			Instructions: plannerInstructions,
			Shape:        briefShape,
		},
		writer(BlogWriter, content.TypeBlog, blogInstructions, blogShape,
			p.knowledge(retrieval.CategoryTechnical, "")),
		writer(XDevWriter, content.TypeXDev, xDevInstructions, postShape),
		writer(XCreator, content.TypeXCreator, xCreatorInstructions, postShape),
		writer(LinkedIn, content.TypeLinkedIn, linkedInInstructions, postShape,
			p.knowledge(retrieval.CategoryEnterprise, "")),
		Spec{
			Name:  ArtDirector,
			Input: "brief",
			Tools: []Tool{ToolRetrieval},
			Retrieval: []retrieval.Source{
				p.history(content.TypeImage),
				p.knowledge(retrieval.CategoryBrand, p.BrandQuery),
				p.brand(),
			},
			Instructions: artDirectorInstructions,
			Shape:        conceptsShape,
		},
		Spec{
			Name:         ImageMaker,
			Input:        "image concept",
			Produces:     content.TypeImage,
			Tools:        []Tool{ToolImageService},
			Instructions: imageMakerInstructions,
			Shape:        imageShape,
		},
		Spec{
			Name:  Editor,
			Input: "brief and artifacts",
			Tools: []Tool{ToolRetrieval},
			Retrieval: []retrieval.Source{
				p.knowledge(retrieval.CategoryStyle, p.StyleQuery),
				p.history(content.TypeEdit),
			},
			Instructions: editorInstructions,
			Shape:        reviewShape,
		},
	)
	if err != nil {
		panic(err)
	}
	return r
}
