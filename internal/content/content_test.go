package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validBrief() Brief {
	return Brief{
		ProductName:    "Seedance 1.0",
		Summary:        "A text-to-video API.",
		TargetSegments: []string{"individual_developers", "creators"},
		KeyMessages:    []string{"five second clips from one prompt"},
		CanonicalURL:   "https://example.com/seedance",
	}
}

func TestBrief_Validate(t *testing.T) {
	b := validBrief()
	require.NoError(t, b.Validate())

	b.KeyMessages = []string{"  "}
	b.Summary = ""
	err := b.Validate()
	assert.ErrorIs(t, err, ErrInvalidBrief)
	assert.Contains(t, err.Error(), "summary")
	assert.Contains(t, err.Error(), "key_messages")

	b = validBrief()
	b.CanonicalURL = "not a url"
	assert.ErrorIs(t, b.Validate(), ErrInvalidBrief)
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Seedance 1.0", "seedance-1-0"},
		{"  Hello,   World!  ", "hello-world"},
		{"***", "untitled"},
		{"ÜberCam", "übercam"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Slugify(tt.in))
		})
	}
	assert.LessOrEqual(t, len(Slugify("a very long product name that keeps going well past any sane limit")), maxSlugLen)
}

func TestContentID(t *testing.T) {
	at := time.Unix(0, 1700000000123456789)

	blog := NewContentID("seedance-1-0", TypeBlog, 0, at)
	assert.Equal(t, "seedance-1-0_blog_1700000000123456789", blog)

	img := NewContentID("seedance-1-0", TypeImage, 2, at)
	assert.Equal(t, "seedance-1-0_image2_1700000000123456789", img)

	typ, ok := TypeFromID(NewContentID("seedance", TypeXDev, 0, at))
	require.True(t, ok)
	assert.Equal(t, TypeXDev, typ)

	typ, ok = TypeFromID(img)
	require.True(t, ok)
	assert.Equal(t, TypeImage, typ)

	_, ok = TypeFromID("garbage")
	assert.False(t, ok)
}

func TestSocialPost_KindAndValidate(t *testing.T) {
	dev := &SocialPost{Platform: PlatformX, Persona: PersonaDev, Variants: []string{"ship it"}}
	assert.Equal(t, TypeXDev, dev.Kind())
	assert.NoError(t, dev.Validate())

	creator := &SocialPost{Platform: PlatformX, Persona: PersonaCreator, Variants: []string{"make stuff"}}
	assert.Equal(t, TypeXCreator, creator.Kind())

	li := &SocialPost{Platform: PlatformLinkedIn, Persona: PersonaLinkedIn, Variants: []string{"post"}}
	assert.Equal(t, TypeLinkedIn, li.Kind())
	assert.NoError(t, li.Validate())

	bad := &SocialPost{Platform: PlatformLinkedIn, Persona: PersonaDev, Variants: []string{"post"}}
	assert.ErrorIs(t, bad.Validate(), ErrInvalidArtifact)

	empty := &SocialPost{Platform: PlatformX, Persona: PersonaDev, Variants: []string{""}}
	assert.ErrorIs(t, empty.Validate(), ErrInvalidArtifact)
}

func TestImageAsset_Validate(t *testing.T) {
	asset := &ImageAsset{
		ImageConcept: ImageConcept{Usage: UsageBlogHero, Prompt: "city at dusk", AspectRatio: "16:9"},
		URL:          "https://cdn.example.com/a.png",
		AltText:      "city at dusk",
	}
	assert.NoError(t, asset.Validate())

	asset.AltText = ""
	assert.ErrorIs(t, asset.Validate(), ErrInvalidArtifact)

	concept := ImageConcept{Usage: UsageXCard, Prompt: "x", AspectRatio: "21:9"}
	assert.ErrorIs(t, concept.Validate(), ErrInvalidArtifact)

	d, ok := DimensionsFor("4:5")
	require.True(t, ok)
	assert.Equal(t, Dimensions{Width: 1080, Height: 1350}, d)
}

func TestPackage_AddAndArtifacts(t *testing.T) {
	var p Package
	p.Add(&BlogArticle{ContentID: "b"})
	p.Add(&SocialPost{ContentID: "c", Platform: PlatformX, Persona: PersonaCreator})
	p.Add(&ImageAsset{ContentID: "i1"})
	p.Add(&ImageAsset{ContentID: "i2"})

	ids := make([]string, 0)
	for _, a := range p.Artifacts() {
		ids = append(ids, a.ID())
	}
	assert.Equal(t, []string{"b", "c", "i1", "i2"}, ids)
	assert.Nil(t, p.XDev)
	assert.Equal(t, 4, p.Len())
}
