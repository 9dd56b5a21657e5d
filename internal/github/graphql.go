package github

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const commitHistoryQuery = `query($owner: String!, $name: String!, $since: GitTimestamp, $until: GitTimestamp, $first: Int!, $cursor: String) {
  repository(owner: $owner, name: $name) {
    defaultBranchRef {
      target {
        ... on Commit {
          history(first: $first, after: $cursor, since: $since, until: $until) {
            pageInfo { hasNextPage endCursor }
            nodes {
              oid
              committedDate
              messageHeadline
              author { name email date }
            }
          }
        }
      }
    }
  }
}`

type graphQLRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables"`
}

type graphQLError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type historyNode struct {
	OID             string    `json:"oid"`
	CommittedDate   time.Time `json:"committedDate"`
	MessageHeadline string    `json:"messageHeadline"`
	Author          Signature `json:"author"`
}

type historyReply struct {
	Data struct {
		Repository *struct {
			DefaultBranchRef *struct {
				Target struct {
					History struct {
						PageInfo struct {
							HasNextPage bool   `json:"hasNextPage"`
							EndCursor   string `json:"endCursor"`
						} `json:"pageInfo"`
						Nodes []historyNode `json:"nodes"`
					} `json:"history"`
				} `json:"target"`
			} `json:"defaultBranchRef"`
		} `json:"repository"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

// Query posts a GraphQL query and decodes the reply into `result`.
// The errors reported inside the reply are not inspected.
func (c *Client) Query(ctx context.Context, query string, variables map[string]interface{},
	result interface{}) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return errors.Wrap(err, "encoding the GraphQL request")
	}
	resp, err := c.Do(ctx, http.MethodPost, c.opts.GraphQLURL, body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body, result); err != nil {
		return errors.Wrap(err, "decoding the GraphQL reply")
	}
	return nil
}

// CommitHistoryGraphQL returns the commits of the default branch in [since, until], newest first.
// It needs a token. `max` <= 0 means no limit.
func (c *Client) CommitHistoryGraphQL(ctx context.Context, owner, name string,
	since, until time.Time, max int) ([]Commit, error) {
	variables := map[string]interface{}{
		"owner": owner,
		"name":  name,
		"first": c.opts.PerPage,
	}
	if !since.IsZero() {
		variables["since"] = since.UTC().Format(time.RFC3339)
	}
	if !until.IsZero() {
		variables["until"] = until.UTC().Format(time.RFC3339)
	}
	var result []Commit
	for {
		reply := historyReply{}
		if err := c.Query(ctx, commitHistoryQuery, variables, &reply); err != nil {
			return result, err
		}
		if len(reply.Errors) > 0 {
			return result, c.graphQLFailure(owner+"/"+name, reply.Errors)
		}
		repo := reply.Data.Repository
		if repo == nil {
			return result, &NotFoundError{URL: owner + "/" + name}
		}
		if repo.DefaultBranchRef == nil {
			// empty repository
			return result, nil
		}
		history := repo.DefaultBranchRef.Target.History
		for _, node := range history.Nodes {
			result = append(result, Commit{
				SHA: node.OID,
				Commit: CommitDetail{
					Message:   node.MessageHeadline,
					Author:    node.Author,
					Committer: Signature{Date: node.CommittedDate},
				},
			})
			if max > 0 && len(result) >= max {
				return result, nil
			}
		}
		if !history.PageInfo.HasNextPage || history.PageInfo.EndCursor == "" {
			return result, nil
		}
		variables["cursor"] = history.PageInfo.EndCursor
	}
}

func (c *Client) graphQLFailure(target string, errs []graphQLError) error {
	messages := make([]string, 0, len(errs))
	for _, e := range errs {
		switch e.Type {
		case "NOT_FOUND":
			return &NotFoundError{URL: target}
		case "RATE_LIMITED":
			return &RateLimitError{Reset: c.now().Add(DefaultSecondaryWait), Wait: DefaultSecondaryWait, Secondary: true}
		}
		messages = append(messages, e.Message)
	}
	return errors.Errorf("GraphQL query on %s failed: %s", target, strings.Join(messages, "; "))
}
