package knowledge

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

type fakeRetrieveClient struct {
	out *bedrockagentruntime.RetrieveOutput
	err error

	gotQuery string
}

func (f *fakeRetrieveClient) Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput,
	optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error) {
	if params.RetrievalQuery != nil && params.RetrievalQuery.Text != nil {
		f.gotQuery = *params.RetrievalQuery.Text
	}
	return f.out, f.err
}

func TestBedrockRetrieverExtractsPassages(t *testing.T) {
	client := &fakeRetrieveClient{
		out: &bedrockagentruntime.RetrieveOutput{
			RetrievalResults: []types.KnowledgeBaseRetrievalResult{
				{Content: &types.RetrievalResultContent{Text: aws.String("first passage")}},
				{Content: nil},
				{Content: &types.RetrievalResultContent{Text: aws.String("second passage")}},
			},
		},
	}
	r := &BedrockRetriever{client: client, knowledgeBaseID: "kb-1"}

	passages, err := r.Retrieve(context.Background(), "office hours")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(passages) != 2 {
		t.Fatalf("got %d passages, want 2", len(passages))
	}
	if passages[0] != "first passage" || passages[1] != "second passage" {
		t.Errorf("passages = %v", passages)
	}
	if client.gotQuery != "office hours" {
		t.Errorf("query = %q", client.gotQuery)
	}
}

func TestBedrockRetrieverPropagatesError(t *testing.T) {
	client := &fakeRetrieveClient{err: errors.New("throttled")}
	r := &BedrockRetriever{client: client, knowledgeBaseID: "kb-1"}

	if _, err := r.Retrieve(context.Background(), "pricing"); err == nil {
		t.Fatal("expected error")
	}
}
