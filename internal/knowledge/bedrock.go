package knowledge

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime/types"
)

// topKResults is how many passages a knowledge base query returns.
const topKResults = 3

// retrieveAPI is the subset of the Bedrock agent runtime client the
// retriever uses, split out so tests can substitute a fake.
type retrieveAPI interface {
	Retrieve(ctx context.Context, params *bedrockagentruntime.RetrieveInput,
		optFns ...func(*bedrockagentruntime.Options)) (*bedrockagentruntime.RetrieveOutput, error)
}

// BedrockRetriever queries an Amazon Bedrock knowledge base.
type BedrockRetriever struct {
	client          retrieveAPI
	knowledgeBaseID string
}

// NewBedrockRetriever builds a retriever for the given knowledge base,
// loading AWS credentials from the environment.
func NewBedrockRetriever(ctx context.Context, region, knowledgeBaseID string) (*BedrockRetriever, error) {
	if knowledgeBaseID == "" {
		return nil, errors.New("knowledge base id is required")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &BedrockRetriever{
		client:          bedrockagentruntime.NewFromConfig(cfg),
		knowledgeBaseID: knowledgeBaseID,
	}, nil
}

// Retrieve implements Retriever against the Bedrock knowledge base.
func (r *BedrockRetriever) Retrieve(ctx context.Context, query string) ([]string, error) {
	out, err := r.client.Retrieve(ctx, &bedrockagentruntime.RetrieveInput{
		KnowledgeBaseId: aws.String(r.knowledgeBaseID),
		RetrievalQuery: &types.KnowledgeBaseQuery{
			Text: aws.String(query),
		},
		RetrievalConfiguration: &types.KnowledgeBaseRetrievalConfiguration{
			VectorSearchConfiguration: &types.KnowledgeBaseVectorSearchConfiguration{
				NumberOfResults: aws.Int32(topKResults),
			},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("knowledge base retrieve: %w", err)
	}

	passages := make([]string, 0, len(out.RetrievalResults))
	for _, result := range out.RetrievalResults {
		if result.Content == nil || result.Content.Text == nil {
			continue
		}
		passages = append(passages, *result.Content.Text)
	}
	return passages, nil
}
