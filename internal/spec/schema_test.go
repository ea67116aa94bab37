package spec

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const petsDoc = `openapi: 3.0.3
info: {title: pets, version: "1"}
paths: {}
components:
  schemas:
    Pet:
      oneOf:
        - $ref: '#/components/schemas/Cat'
        - $ref: '#/components/schemas/Dog'
        - $ref: '#/components/schemas/Bird'
        - type: string
      discriminator:
        propertyName: petType
        mapping:
          cat: '#/components/schemas/Cat'
          kitten: '#/components/schemas/Cat'
          dog: Dog
          fish: '#/components/schemas/Fish'
    Cat:
      type: object
      required: [name]
      properties:
        name: {type: string}
        lives: {type: integer, format: int32}
    Dog:
      type: object
      properties:
        bark: {type: boolean}
    Bird:
      type: object
    Node:
      type: object
      properties:
        value: {type: number, format: double}
        next: {$ref: '#/components/schemas/Node'}
        children:
          type: array
          items: {$ref: '#/components/schemas/Node'}
    Wrapper:
      type: object
      properties:
        nickname:
          type: string
          nullable: true
        maybeCat:
          $ref: '#/components/schemas/Cat'
          nullable: true
        status:
          type: string
          enum: [active, disabled]
        inferred:
          enum: [a, b]
        labels:
          type: object
          additionalProperties: {type: integer}
        free: {}
        catLives: {$ref: '#/components/schemas/Cat/properties/lives'}
        chained: {$ref: '#/components/schemas/Chain/properties/first'}
        missing: {$ref: '#/components/schemas/Missing'}
        remote: {$ref: 'https://example.com/shared.yaml#/components/schemas/X'}
        either:
          type: [string, integer]
    Chain:
      properties:
        first: {$ref: '#/components/schemas/Chain/properties/second'}
        second: {type: string}
    Extended:
      allOf:
        - $ref: '#/components/schemas/Cat'
        - type: object
          properties:
            indoor: {type: boolean}
      properties:
        name: {type: string, format: email}
    Described:
      description: just a cat
      allOf:
        - $ref: '#/components/schemas/Cat'
`

func resolverFor(t *testing.T, src string) *Resolver {
	t.Helper()
	return NewResolver(mustParse(t, src), nil)
}

func model(t *testing.T, r *Resolver, name string) TypeDescriptor {
	t.Helper()
	for _, m := range r.Models() {
		if m.Name == name {
			return m.Type
		}
	}
	t.Fatalf("model %s not found", name)
	return TypeDescriptor{}
}

func field(t *testing.T, td TypeDescriptor, name string) Field {
	t.Helper()
	for _, f := range td.Fields {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("field %s not found", name)
	return Field{}
}

func TestResolve_DiscriminatorAliases(t *testing.T) {
	t.Parallel()
	r := resolverFor(t, petsDoc)
	pet := model(t, r, "Pet")

	require.Equal(t, KindUnion, pet.Kind)
	assert.Equal(t, "petType", pet.Discriminator)
	require.Len(t, pet.Variants, 4)

	cat := pet.Variants[0]
	assert.Equal(t, "Cat", cat.Name)
	assert.Equal(t, "cat", cat.PrimaryAlias)
	assert.Equal(t, []string{"kitten"}, cat.SecondaryAliases)
	require.NotNil(t, cat.Type)
	assert.Equal(t, TypeDescriptor{Kind: KindRef, Ref: "Cat"}, *cat.Type)

	dog := pet.Variants[1]
	assert.Equal(t, "dog", dog.PrimaryAlias, "bare schema names are valid mapping targets")
	assert.Empty(t, dog.SecondaryAliases)

	bird := pet.Variants[2]
	assert.Equal(t, "Bird", bird.PrimaryAlias, "unmapped referenced variants use their name")

	inline := pet.Variants[3]
	assert.Equal(t, "Variant4", inline.Name)
	assert.Empty(t, inline.PrimaryAlias)
	assert.Equal(t, KindScalar, inline.Type.Kind)

	joined := strings.Join(r.Warnings(), "\n")
	assert.Contains(t, joined, `"fish"`)
}

func TestResolve_RecursiveReferencesStop(t *testing.T) {
	t.Parallel()
	r := resolverFor(t, petsDoc)
	node := model(t, r, "Node")

	require.Equal(t, KindObject, node.Kind)
	assert.Equal(t, TypeDescriptor{Kind: KindRef, Ref: "Node"}, field(t, node, "next").Type)
	children := field(t, node, "children").Type
	require.Equal(t, KindArray, children.Kind)
	assert.Equal(t, "Node", children.Elem.Ref)
	assert.Equal(t, scalarType(ScalarNumber, "double"), field(t, node, "value").Type)
}

func TestResolve_Shapes(t *testing.T) {
	t.Parallel()
	r := resolverFor(t, petsDoc)
	w := model(t, r, "Wrapper")

	nick := field(t, w, "nickname").Type
	require.Equal(t, KindOptional, nick.Kind)
	assert.Equal(t, ScalarString, nick.Elem.Scalar)

	maybe := field(t, w, "maybeCat").Type
	require.Equal(t, KindOptional, maybe.Kind)
	assert.Equal(t, "Cat", maybe.Elem.Ref)

	status := field(t, w, "status").Type
	assert.Equal(t, KindScalar, status.Kind)
	assert.Equal(t, []string{"active", "disabled"}, status.Enum)

	inferred := field(t, w, "inferred").Type
	assert.Equal(t, ScalarString, inferred.Scalar)
	assert.Equal(t, []string{"a", "b"}, inferred.Enum)

	labels := field(t, w, "labels").Type
	require.Equal(t, KindMap, labels.Kind)
	assert.Equal(t, ScalarInteger, labels.Elem.Scalar)

	assert.Equal(t, KindDynamic, field(t, w, "free").Type.Kind)

	either := field(t, w, "either").Type
	require.Equal(t, KindUnion, either.Kind)
	assert.Equal(t, "string", either.Variants[0].Name)
	assert.Equal(t, "integer", either.Variants[1].Name)
}

func TestResolve_ReferenceDepth(t *testing.T) {
	t.Parallel()
	r := resolverFor(t, petsDoc)
	w := model(t, r, "Wrapper")

	// One non-component hop is followed.
	assert.Equal(t, scalarType(ScalarInteger, "int32"), field(t, w, "catLives").Type)

	// A second hop is left unresolved rather than expanded.
	chained := field(t, w, "chained").Type
	assert.Equal(t, KindDynamic, chained.Kind)
	assert.Equal(t, "#/components/schemas/Chain/properties/second", chained.Unresolved)

	missing := field(t, w, "missing").Type
	assert.Equal(t, KindDynamic, missing.Kind)
	assert.Equal(t, "#/components/schemas/Missing", missing.Unresolved)

	remote := field(t, w, "remote").Type
	assert.Equal(t, KindDynamic, remote.Kind)
	assert.NotEmpty(t, remote.Unresolved)

	joined := strings.Join(r.Warnings(), "\n")
	assert.Contains(t, joined, string(UnresolvedReference))
	assert.Contains(t, joined, "#/components/schemas/Missing")
	assert.Contains(t, joined, "https://example.com/shared.yaml")

	// Deeper budgets follow longer chains.
	chain := lookupPath(r.Document().Root, "components", "schemas", "Chain", "properties", "first")
	assert.Equal(t, scalarType(ScalarString, ""), r.Schema(chain, 2))
}

func TestResolve_AllOf(t *testing.T) {
	t.Parallel()
	r := resolverFor(t, petsDoc)
	ext := model(t, r, "Extended")

	require.Equal(t, KindObject, ext.Kind)
	assert.Equal(t, []string{"Cat"}, ext.Embeds)
	require.Len(t, ext.Fields, 2)
	assert.Equal(t, "indoor", ext.Fields[0].Name)
	assert.Equal(t, "email", field(t, ext, "name").Type.Format)

	desc := model(t, r, "Described")
	assert.Equal(t, KindRef, desc.Kind)
	assert.Equal(t, "Cat", desc.Ref)
	assert.Equal(t, "just a cat", desc.Description)
}

func TestResolve_ModelsKeepDeclarationOrder(t *testing.T) {
	t.Parallel()
	var names []string
	for _, m := range resolverFor(t, petsDoc).Models() {
		names = append(names, m.Name)
	}
	assert.Equal(t, []string{"Pet", "Cat", "Dog", "Bird", "Node", "Wrapper", "Chain", "Extended", "Described"}, names)
}

func TestResolve_FieldsRequired(t *testing.T) {
	t.Parallel()
	cat := model(t, resolverFor(t, petsDoc), "Cat")
	assert.True(t, field(t, cat, "name").Required)
	assert.False(t, field(t, cat, "lives").Required)
}

func TestResolve_NullOnlyUnion(t *testing.T) {
	t.Parallel()
	r := resolverFor(t, `openapi: 3.1.0
info: {title: n, version: "1"}
paths: {}
components:
  schemas:
    Maybe:
      oneOf:
        - $ref: '#/components/schemas/A'
        - $ref: '#/components/schemas/B'
        - type: 'null'
    A: {type: string}
    B: {type: integer}
`)
	maybe := model(t, r, "Maybe")
	require.Equal(t, KindOptional, maybe.Kind)
	require.Equal(t, KindUnion, maybe.Elem.Kind)
	assert.Len(t, maybe.Elem.Variants, 2)
}
