package metadata

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const learnerMetadata = `<?xml version="1.0" encoding="utf-8"?>
<edmx:Edmx xmlns:edmx="http://docs.oasis-open.org/odata/ns/edmx" Version="4.0">
  <edmx:DataServices>
    <Schema xmlns="http://docs.oasis-open.org/odata/ns/edm" Namespace="NS">
      <EntityType Name="Learner">
        <Key>
          <PropertyRef Name="LearnerId"/>
        </Key>
        <Property Name="LearnerId" Type="Edm.Int32"/>
        <Property Name="UpdatedDate" Type="Edm.DateTimeOffset"/>
      </EntityType>
      <EntityContainer Name="Container">
        <EntitySet Name="Learners" EntityType="NS.Learner"/>
      </EntityContainer>
    </Schema>
  </edmx:DataServices>
</edmx:Edmx>`

func TestDiscoverLearner(t *testing.T) {
	entities, err := Discover(learnerMetadata)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	e := entities[0]
	assert.Equal(t, "Learners", e.Name)
	assert.Equal(t, "Learner", e.EntityName)
	assert.Equal(t, []string{"LearnerId"}, e.PrimaryKeys)
	assert.Equal(t, "UpdatedDate", e.ReplicationKey)

	id, ok := e.Schema.Property("LearnerId")
	require.True(t, ok)
	assert.Equal(t, "integer", id.Type)

	updated, ok := e.Schema.Property("UpdatedDate")
	require.True(t, ok)
	assert.Equal(t, "string", updated.Type)
	assert.Equal(t, "date-time", updated.Format)
}

func TestDiscoverKeyOrderPreserved(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <EntityType Name="Enrolment">
	    <Key>
	      <PropertyRef Name="ProgrammeId"/>
	      <PropertyRef Name="LearnerId"/>
	    </Key>
	    <Property Name="LearnerId" Type="Edm.Int64"/>
	    <Property Name="ProgrammeId" Type="Edm.Int64"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Enrolments" EntityType="NS.Enrolment"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	entities, err := Discover(doc)
	require.NoError(t, err)
	require.Len(t, entities, 1)

	// Key order comes from the PropertyRef sequence, not property order.
	assert.Equal(t, []string{"ProgrammeId", "LearnerId"}, entities[0].PrimaryKeys)
}

func TestDiscoverWithoutReplicationKey(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <EntityType Name="Centre">
	    <Key><PropertyRef Name="CentreId"/></Key>
	    <Property Name="CentreId" Type="Edm.Int32"/>
	    <Property Name="Name" Type="Edm.String"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Centres" EntityType="NS.Centre"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	entities, err := Discover(doc)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Empty(t, entities[0].ReplicationKey)
}

func TestDiscoverCollectionOfStrings(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <EntityType Name="User">
	    <Key><PropertyRef Name="UserId"/></Key>
	    <Property Name="UserId" Type="Edm.Guid"/>
	    <Property Name="Roles" Type="Collection(Edm.String)"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Users" EntityType="NS.User"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	entities, err := Discover(doc)
	require.NoError(t, err)

	roles, ok := entities[0].Schema.Property("Roles")
	require.True(t, ok)
	assert.Equal(t, "array", roles.Type)
	require.NotNil(t, roles.Items)
	assert.Equal(t, "string", roles.Items.Type)
}

func TestDiscoverComplexTypes(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <ComplexType Name="Address" OpenType="true">
	    <Property Name="Line1" Type="Edm.String"/>
	    <Property Name="Postcode" Type="Edm.String"/>
	  </ComplexType>
	  <ComplexType Name="Contact">
	    <Property Name="Email" Type="Edm.String"/>
	  </ComplexType>
	  <EntityType Name="Employer">
	    <Key><PropertyRef Name="EmployerId"/></Key>
	    <Property Name="EmployerId" Type="Edm.Int32"/>
	    <Property Name="Address" Type="NS.Address"/>
	    <Property Name="Contact" Type="NS.Contact"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Employers" EntityType="NS.Employer"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	entities, err := Discover(doc)
	require.NoError(t, err)

	address, ok := entities[0].Schema.Property("Address")
	require.True(t, ok)
	assert.Equal(t, "object", address.Type)
	require.NotNil(t, address.AdditionalProperties)
	assert.True(t, *address.AdditionalProperties, "open complex type permits undeclared properties")

	line1, ok := address.Property("Line1")
	require.True(t, ok)
	assert.Equal(t, "string", line1.Type)

	contact, ok := entities[0].Schema.Property("Contact")
	require.True(t, ok)
	require.NotNil(t, contact.AdditionalProperties)
	assert.False(t, *contact.AdditionalProperties, "closed complex type rejects undeclared properties")
}

func TestDiscoverUnknownPrimitiveFallsBackToString(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <EntityType Name="Thing">
	    <Key><PropertyRef Name="Id"/></Key>
	    <Property Name="Id" Type="Edm.Int32"/>
	    <Property Name="Geo" Type="Edm.GeographyPoint"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Things" EntityType="NS.Thing"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	entities, err := Discover(doc)
	require.NoError(t, err)

	geo, ok := entities[0].Schema.Property("Geo")
	require.True(t, ok)
	assert.Equal(t, "string", geo.Type)
}

func TestDiscoverEntityWithoutSetIsNotSurfaced(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <EntityType Name="Visible">
	    <Key><PropertyRef Name="Id"/></Key>
	    <Property Name="Id" Type="Edm.Int32"/>
	  </EntityType>
	  <EntityType Name="Hidden">
	    <Key><PropertyRef Name="Id"/></Key>
	    <Property Name="Id" Type="Edm.Int32"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Visibles" EntityType="NS.Visible"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	entities, err := Discover(doc)
	require.NoError(t, err)
	require.Len(t, entities, 1)
	assert.Equal(t, "Visibles", entities[0].Name)
}

func TestDiscoverFatalErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{
			name: "malformed xml",
			doc:  `<Edmx><DataServices>`,
		},
		{
			name: "schema missing namespace",
			doc: `<Edmx><DataServices><Schema>
			  <EntityType Name="T"><Key><PropertyRef Name="Id"/></Key>
			    <Property Name="Id" Type="Edm.Int32"/></EntityType>
			</Schema></DataServices></Edmx>`,
		},
		{
			name: "entity type missing name",
			doc: `<Edmx><DataServices><Schema Namespace="NS">
			  <EntityType><Key><PropertyRef Name="Id"/></Key>
			    <Property Name="Id" Type="Edm.Int32"/></EntityType>
			</Schema></DataServices></Edmx>`,
		},
		{
			name: "entity set missing entity type",
			doc: `<Edmx><DataServices><Schema Namespace="NS">
			  <EntityContainer Name="C"><EntitySet Name="Ts"/></EntityContainer>
			</Schema></DataServices></Edmx>`,
		},
		{
			name: "property ref to unknown property",
			doc: `<Edmx><DataServices><Schema Namespace="NS">
			  <EntityType Name="T"><Key><PropertyRef Name="Nope"/></Key>
			    <Property Name="Id" Type="Edm.Int32"/></EntityType>
			  <EntityContainer Name="C"><EntitySet Name="Ts" EntityType="NS.T"/></EntityContainer>
			</Schema></DataServices></Edmx>`,
		},
		{
			name: "entity set references unknown entity type",
			doc: `<Edmx><DataServices><Schema Namespace="NS">
			  <EntityContainer Name="C"><EntitySet Name="Ts" EntityType="NS.Missing"/></EntityContainer>
			</Schema></DataServices></Edmx>`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Discover(tt.doc)
			assert.Error(t, err)
		})
	}
}

func TestDiscoverSelfReferentialComplexType(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <ComplexType Name="Node">
	    <Property Name="Child" Type="NS.Node"/>
	  </ComplexType>
	  <EntityType Name="Tree">
	    <Key><PropertyRef Name="Id"/></Key>
	    <Property Name="Id" Type="Edm.Int32"/>
	    <Property Name="Root" Type="NS.Node"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Trees" EntityType="NS.Tree"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	_, err := Discover(doc)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "self-referential")
}

func TestSchemaMarshalPreservesPropertyOrder(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <EntityType Name="Learner">
	    <Key><PropertyRef Name="LearnerId"/></Key>
	    <Property Name="LearnerId" Type="Edm.Int32"/>
	    <Property Name="Forename" Type="Edm.String"/>
	    <Property Name="Surname" Type="Edm.String"/>
	    <Property Name="UpdatedDate" Type="Edm.DateTimeOffset"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Learners" EntityType="NS.Learner"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	entities, err := Discover(doc)
	require.NoError(t, err)

	data, err := json.Marshal(entities[0].Schema)
	require.NoError(t, err)

	expected := `{"type":"object","properties":{` +
		`"LearnerId":{"type":"integer"},` +
		`"Forename":{"type":"string"},` +
		`"Surname":{"type":"string"},` +
		`"UpdatedDate":{"type":"string","format":"date-time"}}}`
	assert.Equal(t, expected, string(data), "property order must match declaration order")
}

func TestEmbeddedEntities(t *testing.T) {
	doc := `<Edmx><DataServices>
	<Schema Namespace="NS">
	  <ComplexType Name="Evidence">
	    <Property Name="EvidenceId" Type="Edm.Int32"/>
	    <Property Name="FileName" Type="Edm.String"/>
	  </ComplexType>
	  <EntityType Name="Review">
	    <Key><PropertyRef Name="ReviewId"/></Key>
	    <Property Name="ReviewId" Type="Edm.Int32"/>
	    <Property Name="Tags" Type="Collection(Edm.String)"/>
	    <Property Name="Evidences" Type="Collection(NS.Evidence)"/>
	  </EntityType>
	  <EntityContainer Name="C">
	    <EntitySet Name="Reviews" EntityType="NS.Review"/>
	  </EntityContainer>
	</Schema>
	</DataServices></Edmx>`

	entities, err := Discover(doc)
	require.NoError(t, err)

	embedded := EmbeddedEntities(entities[0])
	require.Len(t, embedded, 1, "scalar collections are not embedded entities")

	assert.Equal(t, "Review", embedded[0].ParentEntityName)
	assert.Equal(t, "Reviews", embedded[0].ParentName)
	assert.Equal(t, "Evidences", embedded[0].CollectionName)

	fileName, ok := embedded[0].Schema.Property("FileName")
	require.True(t, ok)
	assert.Equal(t, "string", fileName.Type)
}

func TestDiscoverRejectsExternalEntities(t *testing.T) {
	// Undeclared entity references must fail parsing instead of expanding.
	doc := `<?xml version="1.0"?>
	<!DOCTYPE Edmx [<!ENTITY xxe SYSTEM "file:///etc/passwd">]>
	<Edmx><DataServices>
	<Schema Namespace="&xxe;">
	  <EntityContainer Name="C"/>
	</Schema>
	</DataServices></Edmx>`

	_, err := Discover(doc)
	assert.Error(t, err)
}
