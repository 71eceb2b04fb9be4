package firebase

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"cloud.google.com/go/firestore"
	firebase "firebase.google.com/go/v4"
	"github.com/sirupsen/logrus"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"confluence-backend/internal/domain"
)

// FirestoreAnalysisRepository mirrors the latest analysis per symbol into a
// Firestore collection so mobile clients can read it directly.
type FirestoreAnalysisRepository struct {
	client     *firestore.Client
	collection string
	logger     *logrus.Entry
}

var _ domain.AnalysisRepository = (*FirestoreAnalysisRepository)(nil)

func NewFirestoreAnalysisRepository(ctx context.Context, app *firebase.App, collection string, logger *logrus.Logger) (*FirestoreAnalysisRepository, error) {
	client, err := app.Firestore(ctx)
	if err != nil {
		return nil, fmt.Errorf("error getting firestore client: %w", err)
	}
	if collection == "" {
		collection = "analyses"
	}
	return &FirestoreAnalysisRepository{
		client:     client,
		collection: collection,
		logger:     logger.WithField("component", "firestore"),
	}, nil
}

// DocumentID is the document name a symbol's analysis is stored under.
func DocumentID(symbol string) string {
	return domain.NormalizeSymbol(symbol)
}

// toDocument flattens a result through its JSON form so documents carry the
// same field names as the HTTP API.
func toDocument(result domain.AnalysisResult) (map[string]interface{}, error) {
	data, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}
	var doc map[string]interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func fromDocument(doc map[string]interface{}) (domain.AnalysisResult, error) {
	var res domain.AnalysisResult
	data, err := json.Marshal(doc)
	if err != nil {
		return res, err
	}
	err = json.Unmarshal(data, &res)
	return res, err
}

func (r *FirestoreAnalysisRepository) Save(ctx context.Context, result domain.AnalysisResult) error {
	doc, err := toDocument(result)
	if err != nil {
		return fmt.Errorf("firestore encode %s: %w", result.Symbol, err)
	}
	ref := r.client.Collection(r.collection).Doc(DocumentID(result.Symbol))
	if _, err := ref.Set(ctx, doc); err != nil {
		return fmt.Errorf("firestore save %s: %w", result.Symbol, err)
	}
	return nil
}

func (r *FirestoreAnalysisRepository) Get(ctx context.Context, symbol string) (domain.AnalysisResult, bool, error) {
	snap, err := r.client.Collection(r.collection).Doc(DocumentID(symbol)).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.AnalysisResult{}, false, nil
	}
	if err != nil {
		return domain.AnalysisResult{}, false, fmt.Errorf("firestore get %s: %w", symbol, err)
	}

	res, err := fromDocument(snap.Data())
	if err != nil {
		return domain.AnalysisResult{}, false, fmt.Errorf("firestore decode %s: %w", symbol, err)
	}
	return res, true, nil
}

func (r *FirestoreAnalysisRepository) List(ctx context.Context) ([]domain.AnalysisResult, error) {
	iter := r.client.Collection(r.collection).Documents(ctx)
	defer iter.Stop()

	var out []domain.AnalysisResult
	for {
		snap, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore list: %w", err)
		}
		res, err := fromDocument(snap.Data())
		if err != nil {
			r.logger.WithError(err).WithField("doc", snap.Ref.ID).Warn("skipping undecodable analysis")
			continue
		}
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out, nil
}

func (r *FirestoreAnalysisRepository) Close() error {
	return r.client.Close()
}
