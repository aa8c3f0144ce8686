// Package ingest loads tables, columns and foreign keys read from a
// connected database into a model. Tables become objects, columns become
// attributes, and foreign keys become relationships created through the
// same path as user edits, so every model of the family is kept in step.
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"slices"

	"golang.org/x/text/cases"

	"github.com/mesh-intelligence/strata/internal/catalog"
	"github.com/mesh-intelligence/strata/internal/modeling"
	"github.com/mesh-intelligence/strata/internal/modelsync"
	"github.com/mesh-intelligence/strata/pkg/types"
)

// Direction tells how the connected system relates to the model.
type Direction string

// Directions.
const (
	// DirectionSource reads column types as generic data types.
	DirectionSource Direction = "source"
	// DirectionTarget reads column types as physical type hints.
	DirectionTarget Direction = "target"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	return d == DirectionSource || d == DirectionTarget
}

// SyncRequest describes one ingestion run.
type SyncRequest struct {
	ModelID string
	// System names the connected system; it defaults to the schema's.
	System            string
	Direction         Direction
	IncludeAttributes bool
	// Tables limits the run; empty means every table.
	Tables []string
	Source catalog.Extractor
}

// CandidateError records a relationship candidate that could not be
// applied.
type CandidateError struct {
	Table   string `json:"table"`
	Column  string `json:"column"`
	Message string `json:"message"`
}

// Report summarizes an ingestion run.
type Report struct {
	ModelID              string           `json:"model_id"`
	System               string           `json:"system"`
	Direction            Direction        `json:"direction"`
	Tables               int              `json:"tables"`
	ObjectsCreated       int              `json:"objects_created"`
	ObjectsMatched       int              `json:"objects_matched"`
	AttributesCreated    int              `json:"attributes_created"`
	RelationshipsCreated int              `json:"relationships_created"`
	RelationshipsSkipped int              `json:"relationships_skipped"`
	SyncedModelIDs       []string         `json:"synced_model_ids"`
	Errors               []CandidateError `json:"errors,omitempty"`
}

// Ingestor applies extracted schemas to models.
type Ingestor struct {
	svc    *modeling.Service
	engine *modelsync.Engine
	logger *slog.Logger
}

// New returns an Ingestor writing through svc. A nil logger discards
// output.
func New(svc *modeling.Service, logger *slog.Logger) *Ingestor {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Ingestor{svc: svc, engine: svc.Engine(), logger: logger}
}

// ingested is a table's object in the target model.
type ingested struct {
	object      *types.Object
	modelObject *types.ModelObject
	// attributes by folded name
	attributes map[string]*types.Attribute
}

// run holds the state of one Sync call.
type run struct {
	req     SyncRequest
	model   *types.Model
	schema  *catalog.Schema
	report  *Report
	objects map[string]*ingested
	keys    *modelsync.KeyRegistry
	fold    cases.Caser
}

// Sync extracts the schema from req.Source and applies it to the model.
// Objects and attributes are matched by case-insensitive name before new
// ones are created. Candidate failures are collected in the report and do
// not stop the run.
func (in *Ingestor) Sync(ctx context.Context, req SyncRequest) (*Report, error) {
	if req.Source == nil {
		return nil, &modeling.FieldError{Field: "source", Err: types.ErrInvalidData}
	}
	if !req.Direction.Valid() {
		return nil, &modeling.FieldError{Field: "direction", Err: types.ErrInvalidDirection}
	}
	model, err := in.engine.Model(modelsync.NewCache(), req.ModelID)
	if err != nil {
		return nil, &modeling.FieldError{Field: "model_id", Err: err}
	}

	schema, err := req.Source.ExtractSchema(ctx, req.Tables)
	if err != nil {
		return nil, fmt.Errorf("extracting schema: %w", err)
	}
	system := modelsync.FirstPresent(req.System, schema.System)

	r := &run{
		req:     req,
		model:   model,
		schema:  schema,
		report:  &Report{ModelID: model.ModelID, System: system, Direction: req.Direction, Tables: len(schema.Tables)},
		objects: map[string]*ingested{},
		keys:    modelsync.NewKeyRegistry(),
		fold:    cases.Fold(),
	}
	in.logger.Info("ingesting schema", "model_id", model.ModelID, "system", system,
		"direction", req.Direction, "tables", len(schema.Tables))

	if err := in.loadExisting(r); err != nil {
		return r.report, err
	}
	for i := range schema.Tables {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		if err := in.applyTable(ctx, r, &schema.Tables[i]); err != nil {
			return r.report, fmt.Errorf("ingesting table %s: %w", schema.Tables[i].Name, err)
		}
	}
	if err := in.registerRelationships(r); err != nil {
		return r.report, err
	}
	for i := range schema.Tables {
		if err := ctx.Err(); err != nil {
			return r.report, err
		}
		t := &schema.Tables[i]
		for _, c := range InferForeignKeys(t, schema.Tables, t.ForeignKeys) {
			in.applyCandidate(ctx, r, c)
		}
	}

	in.logger.Info("ingested schema",
		"model_id", model.ModelID,
		"objects_created", r.report.ObjectsCreated,
		"objects_matched", r.report.ObjectsMatched,
		"relationships_created", r.report.RelationshipsCreated,
		"errors", len(r.report.Errors))
	return r.report, nil
}

// loadExisting indexes the objects already projected into the model by
// folded name.
func (in *Ingestor) loadExisting(r *run) error {
	c := modelsync.NewCache()
	mos, err := in.engine.Projections(c, r.model.ModelID)
	if err != nil {
		return err
	}
	for _, mo := range mos {
		obj, err := in.engine.Object(c, mo.ObjectID)
		if err != nil {
			return err
		}
		key := r.fold.String(obj.Name)
		if _, dup := r.objects[key]; dup {
			continue
		}
		attrs, err := in.engine.Attributes(c, obj.ObjectID)
		if err != nil {
			return err
		}
		e := &ingested{object: obj, modelObject: mo, attributes: map[string]*types.Attribute{}}
		for _, a := range attrs {
			e.attributes[r.fold.String(a.Name)] = a
		}
		r.objects[key] = e
	}
	return nil
}

// registerRelationships seeds the run's key registry with the canonical
// relationships already linking ingested objects, so candidates they cover
// are skipped and never overwrite the stored type or name.
func (in *Ingestor) registerRelationships(r *run) error {
	ids := make([]string, 0, len(r.objects))
	ingestedIDs := make(map[string]bool, len(r.objects))
	for _, e := range r.objects {
		ids = append(ids, e.object.ObjectID)
		ingestedIDs[e.object.ObjectID] = true
	}
	rels, err := in.engine.Relationships(ids)
	if err != nil {
		return err
	}
	for _, rel := range rels {
		if ingestedIDs[rel.TargetObjectID] {
			r.keys.Add(modelsync.KeyOf(rel.Endpoints()))
		}
	}
	return nil
}

// attributeInput maps a column to an attribute in the run's direction.
func (r *run) attributeInput(t *catalog.Table, col *catalog.Column) modeling.AttributeInput {
	nullable := col.Nullable
	ai := modeling.AttributeInput{
		Name:         col.Name,
		IsPrimaryKey: t.IsPrimaryKey(col.Name),
		IsForeignKey: t.ForeignKeyOn(col.Name) != nil,
		IsNullable:   &nullable,
	}
	if r.req.Direction == DirectionTarget {
		ai.PhysicalType = col.Type
	} else {
		ai.DataType = col.Type
	}
	return ai
}

// applyTable matches or creates the table's object and, when requested,
// its attributes.
func (in *Ingestor) applyTable(ctx context.Context, r *run, t *catalog.Table) error {
	key := r.fold.String(t.Name)
	syncMeta := modelsync.WithSyncMetadata(nil, r.report.System, string(r.req.Direction))

	e, ok := r.objects[key]
	if !ok {
		input := modeling.CreateObjectInput{ModelID: r.model.ModelID, Name: t.Name, Config: syncMeta}
		if r.req.IncludeAttributes {
			for i := range t.Columns {
				input.Attributes = append(input.Attributes, r.attributeInput(t, &t.Columns[i]))
			}
		}
		res, err := in.svc.CreateObject(ctx, input)
		if err != nil {
			return err
		}
		e = &ingested{object: res.Object, modelObject: res.ModelObject, attributes: map[string]*types.Attribute{}}
		for _, a := range res.Attributes {
			e.attributes[r.fold.String(a.Name)] = a
		}
		r.objects[key] = e
		r.report.ObjectsCreated++
		r.report.AttributesCreated += len(res.Attributes)
		return nil
	}

	r.report.ObjectsMatched++
	mo, err := in.svc.UpdateModelObjectConfig(ctx, e.modelObject.ModelObjectID, syncMeta)
	if err != nil {
		return err
	}
	e.modelObject = mo
	if !r.req.IncludeAttributes {
		return nil
	}
	for i := range t.Columns {
		col := &t.Columns[i]
		if _, ok := e.attributes[r.fold.String(col.Name)]; ok {
			continue
		}
		a, _, err := in.svc.AddAttribute(ctx, e.modelObject.ModelObjectID, r.attributeInput(t, col))
		if err != nil {
			return err
		}
		e.attributes[r.fold.String(a.Name)] = a
		r.report.AttributesCreated++
	}
	return nil
}

// applyCandidate creates the relationship for one candidate. Keys that
// already exist, or were handled earlier in this run, are skipped.
func (in *Ingestor) applyCandidate(ctx context.Context, r *run, c Candidate) {
	fail := func(err error) {
		r.report.Errors = append(r.report.Errors, CandidateError{Table: c.Table, Column: c.Column, Message: err.Error()})
		in.logger.Warn("foreign key not applied", "table", c.Table, "column", c.Column, "ref_table", c.RefTable, "err", err)
	}

	src, ok := r.objects[r.fold.String(c.Table)]
	if !ok {
		fail(fmt.Errorf("table %s: %w", c.Table, types.ErrNotFound))
		return
	}
	tgt, ok := r.objects[r.fold.String(c.RefTable)]
	if !ok {
		fail(fmt.Errorf("referenced table %s was not ingested: %w", c.RefTable, types.ErrNotFound))
		return
	}

	var sa, ta string
	if a, ok := src.attributes[r.fold.String(c.Column)]; ok && c.RefColumn != "" {
		if b, ok := tgt.attributes[r.fold.String(c.RefColumn)]; ok {
			sa, ta = a.AttributeID, b.AttributeID
		}
	}
	level := modelsync.LevelFor(sa, ta)
	if !r.keys.Add(modelsync.BuildKey(src.object.ObjectID, tgt.object.ObjectID, level, sa, ta)) {
		r.report.RelationshipsSkipped++
		return
	}

	res, err := in.svc.CreateRelationship(ctx, modeling.RelationshipInput{
		ModelID:           r.model.ModelID,
		SourceObjectID:    src.object.ObjectID,
		TargetObjectID:    tgt.object.ObjectID,
		SourceAttributeID: sa,
		TargetAttributeID: ta,
		Type:              types.RelManyToOne,
		Name:              c.Column,
	})
	if err != nil {
		fail(err)
		return
	}
	if res.Created {
		r.report.RelationshipsCreated++
	} else {
		r.report.RelationshipsSkipped++
	}
	for _, id := range res.SyncedModelIDs {
		if !slices.Contains(r.report.SyncedModelIDs, id) {
			r.report.SyncedModelIDs = append(r.report.SyncedModelIDs, id)
		}
	}
}
