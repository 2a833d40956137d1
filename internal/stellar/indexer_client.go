package stellar

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"stellar-wallet-core/internal/domain"
)

// MercuryClient implements Indexer over the Mercury GraphQL and subscription APIs.
type MercuryClient struct {
	baseURL string
	cfg     clientConfig
}

// Compile-time interface check.
var _ Indexer = (*MercuryClient)(nil)

// NewMercuryClient creates a new Mercury client. Retries are left to the session manager.
func NewMercuryClient(baseURL string, opts ...ClientOption) *MercuryClient {
	opts = append([]ClientOption{WithMaxRetries(0)}, opts...)
	return &MercuryClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		cfg:     newClientConfig(opts),
	}
}

type graphqlRequest struct {
	Query     string                 `json:"query"`
	Variables map[string]interface{} `json:"variables,omitempty"`
}

type graphqlResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphqlError  `json:"errors"`
}

type graphqlError struct {
	Message string `json:"message"`
}

// jwtExpired is the message Mercury returns for stale tokens on otherwise 200 responses.
const jwtExpired = "jwt expired"

func (c *MercuryClient) post(ctx context.Context, path, token string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	return c.cfg.do(ctx, SourceIndexer, func() (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		if token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
		return req, nil
	}, false)
}

// query runs a GraphQL document and decodes its data member into result.
func (c *MercuryClient) query(ctx context.Context, token, document string, vars map[string]interface{}, result interface{}) error {
	body, err := c.post(ctx, "/graphql", token, graphqlRequest{Query: document, Variables: vars})
	if err != nil {
		return err
	}

	var resp graphqlResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("unmarshal graphql response: %w", err)
	}

	if len(resp.Errors) > 0 {
		msg := resp.Errors[0].Message
		if strings.Contains(strings.ToLower(msg), jwtExpired) {
			return domain.NewUpstreamErrorKind(SourceIndexer, http.StatusOK, msg, domain.ErrAuthExpired)
		}
		return domain.NewUpstreamError(SourceIndexer, http.StatusOK, msg, body)
	}

	if result != nil {
		if err := json.Unmarshal(resp.Data, result); err != nil {
			return fmt.Errorf("unmarshal graphql data: %w", err)
		}
	}
	return nil
}

const authenticateMutation = `
mutation Authenticate($email: String!, $password: String!) {
  authenticate(input: {email: $email, password: $password}) {
    jwtToken
  }
}`

// Authenticate exchanges credentials for a bearer token.
func (c *MercuryClient) Authenticate(ctx context.Context, email, password string) (string, error) {
	var result struct {
		Authenticate struct {
			JWTToken string `json:"jwtToken"`
		} `json:"authenticate"`
	}
	vars := map[string]interface{}{"email": email, "password": password}
	if err := c.query(ctx, "", authenticateMutation, vars, &result); err != nil {
		return "", fmt.Errorf("authenticate: %w", err)
	}
	if result.Authenticate.JWTToken == "" {
		return "", fmt.Errorf("authenticate: empty token")
	}
	return result.Authenticate.JWTToken, nil
}

const opColumns = `opId txHash source txInfoByTx { successful ledgerByLedger { closeTime } }`

var accountHistoryQuery = `
query AccountHistory($pubKey: String!) {
  createAccountByPublicKey(publicKeyText: $pubKey) { nodes { ` + opColumns + ` destination startingBalance } }
  paymentsByPublicKey(publicKeyText: $pubKey) { nodes { ` + opColumns + ` from to amount assetNative assetByAsset { code issuer } } }
  changeTrustByPublicKey(publicKeyText: $pubKey) { nodes { ` + opColumns + ` limit assetByLineAsset { code issuer } } }
  pathPaymentsStrictSendByPublicKey(publicKeyText: $pubKey) { nodes { ` + opColumns + ` from to amount sourceAmount assetNative assetByAsset { code issuer } sourceAssetNative assetBySourceAsset { code issuer } } }
  pathPaymentsStrictReceiveByPublicKey(publicKeyText: $pubKey) { nodes { ` + opColumns + ` from to amount sourceAmount assetNative assetByAsset { code issuer } sourceAssetNative assetBySourceAsset { code issuer } } }
  invokeHostFnByPublicKey(publicKeyText: $pubKey) { nodes { ` + opColumns + ` contractId functionName } }
}`

type nodes[T any] struct {
	Nodes []T `json:"nodes"`
}

// AccountHistory returns the indexed operations involving an account.
func (c *MercuryClient) AccountHistory(ctx context.Context, token, accountID string) (*IndexerHistory, error) {
	var result struct {
		CreateAccount nodes[IndexedCreateAccount] `json:"createAccountByPublicKey"`
		Payments      nodes[IndexedPayment]       `json:"paymentsByPublicKey"`
		ChangeTrust   nodes[IndexedChangeTrust]   `json:"changeTrustByPublicKey"`
		StrictSend    nodes[IndexedPathPayment]   `json:"pathPaymentsStrictSendByPublicKey"`
		StrictRecv    nodes[IndexedPathPayment]   `json:"pathPaymentsStrictReceiveByPublicKey"`
		InvokeHostFn  nodes[IndexedInvokeHostFn]  `json:"invokeHostFnByPublicKey"`
	}
	if err := c.query(ctx, token, accountHistoryQuery, map[string]interface{}{"pubKey": accountID}, &result); err != nil {
		return nil, fmt.Errorf("account history: %w", err)
	}

	return &IndexerHistory{
		CreateAccount:          result.CreateAccount.Nodes,
		Payments:               result.Payments.Nodes,
		ChangeTrust:            result.ChangeTrust.Nodes,
		PathPaymentsStrictSend: result.StrictSend.Nodes,
		PathPaymentsStrictRecv: result.StrictRecv.Nodes,
		InvokeHostFunctions:    result.InvokeHostFn.Nodes,
	}, nil
}

type indexedEntry struct {
	ContractID string `json:"contractId"`
	KeyXDR     string `json:"keyXdr"`
	ValueXDR   string `json:"valueXdr"`
}

// balancesQuery builds one aliased entry lookup per contract so the whole balance set
// is fetched in a single round trip.
func balancesQuery(accountID string, contractIDs []string) (string, map[string]interface{}, error) {
	var b strings.Builder
	vars := map[string]interface{}{"pubKey": accountID}

	b.WriteString("query AccountBalances($pubKey: String!")
	for i := range contractIDs {
		fmt.Fprintf(&b, ", $contract%d: String!, $key%d: String!", i, i)
	}
	b.WriteString(") {\n")
	b.WriteString("  accountObjectByPublicKey(publicKeyText: $pubKey) { nodes { nativeBalance numSubEntries numSponsored numSponsoring buyingLiabilities sellingLiabilities } }\n")
	b.WriteString("  balanceByPublicKey(publicKeyText: $pubKey) { nodes { balance limit buyingLiabilities sellingLiabilities assetByAsset { code issuer } } }\n")

	key, err := BalanceKeyXDR(accountID)
	if err != nil {
		return "", nil, err
	}
	for i, id := range contractIDs {
		fmt.Fprintf(&b, "  c%d: entryUpdateByContractIdAndKey(contract: $contract%d, ledgerKey: $key%d) { nodes { contractId keyXdr valueXdr } }\n", i, i, i)
		vars[fmt.Sprintf("contract%d", i)] = id
		vars[fmt.Sprintf("key%d", i)] = key
	}
	b.WriteString("}")
	return b.String(), vars, nil
}

// AccountBalances returns classic and contract token balances in one query.
func (c *MercuryClient) AccountBalances(ctx context.Context, token, accountID string, contractIDs []string) (*IndexerBalances, error) {
	document, vars, err := balancesQuery(accountID, contractIDs)
	if err != nil {
		return nil, fmt.Errorf("account balances: %w", err)
	}

	var raw map[string]json.RawMessage
	if err := c.query(ctx, token, document, vars, &raw); err != nil {
		return nil, fmt.Errorf("account balances: %w", err)
	}

	out := &IndexerBalances{TokenBalances: make(map[string]string)}

	var account nodes[IndexedAccount]
	if data, ok := raw["accountObjectByPublicKey"]; ok {
		if err := json.Unmarshal(data, &account); err != nil {
			return nil, fmt.Errorf("decode account object: %w", err)
		}
	}
	if len(account.Nodes) > 0 {
		out.Account = &account.Nodes[0]
	}

	var trustlines nodes[IndexedTrustline]
	if data, ok := raw["balanceByPublicKey"]; ok {
		if err := json.Unmarshal(data, &trustlines); err != nil {
			return nil, fmt.Errorf("decode trustlines: %w", err)
		}
	}
	out.Trustlines = trustlines.Nodes

	for i, id := range contractIDs {
		data, ok := raw[fmt.Sprintf("c%d", i)]
		if !ok {
			continue
		}
		var entries nodes[indexedEntry]
		if err := json.Unmarshal(data, &entries); err != nil {
			return nil, fmt.Errorf("decode entry for %s: %w", id, err)
		}
		// The newest entry update is last.
		if n := len(entries.Nodes); n > 0 && entries.Nodes[n-1].ValueXDR != "" {
			out.TokenBalances[id] = entries.Nodes[n-1].ValueXDR
		}
	}

	return out, nil
}

// SubscribeAccount registers a full account watch.
func (c *MercuryClient) SubscribeAccount(ctx context.Context, token, accountID string) error {
	payload := map[string]interface{}{"publickey": accountID}
	if _, err := c.post(ctx, "/account", token, payload); err != nil {
		return fmt.Errorf("subscribe account: %w", err)
	}
	return nil
}

// SubscribeTokenEvents registers a watch on transfer events of a token for an account.
func (c *MercuryClient) SubscribeTokenEvents(ctx context.Context, token, accountID, contractID string) error {
	topic1, err := EncodeScVal(SymbolArg("transfer"))
	if err != nil {
		return fmt.Errorf("encode topic: %w", err)
	}
	addr, err := AddressArg(accountID)
	if err != nil {
		return err
	}
	topic2, err := EncodeScVal(addr)
	if err != nil {
		return fmt.Errorf("encode topic: %w", err)
	}

	// One watch for transfers sent by the account and one for transfers it receives.
	for _, payload := range []map[string]interface{}{
		{"contract_id": contractID, "max_single_size": 200, "topic1": topic1, "topic2": topic2},
		{"contract_id": contractID, "max_single_size": 200, "topic1": topic1, "topic3": topic2},
	} {
		if _, err := c.post(ctx, "/event", token, payload); err != nil {
			return fmt.Errorf("subscribe token events: %w", err)
		}
	}
	return nil
}

// SubscribeTokenBalance registers a watch on the balance entry of a token for an account.
func (c *MercuryClient) SubscribeTokenBalance(ctx context.Context, token, accountID, contractID string) error {
	key, err := BalanceKeyXDR(accountID)
	if err != nil {
		return err
	}
	payload := map[string]interface{}{"contract_id": contractID, "max_single_size": 150, "key_xdr": key, "durability": "persistent"}
	if _, err := c.post(ctx, "/entry", token, payload); err != nil {
		return fmt.Errorf("subscribe token balance: %w", err)
	}
	return nil
}

const accountSubscriptionsQuery = `
query AccountSubscriptions {
  allFullAccountSubscriptionsList { publickey }
}`

// AccountSubscriptions lists the accounts with a registered account watch.
func (c *MercuryClient) AccountSubscriptions(ctx context.Context, token string) ([]string, error) {
	var result struct {
		List []struct {
			PublicKey string `json:"publickey"`
		} `json:"allFullAccountSubscriptionsList"`
	}
	if err := c.query(ctx, token, accountSubscriptionsQuery, nil, &result); err != nil {
		return nil, fmt.Errorf("account subscriptions: %w", err)
	}

	keys := make([]string, 0, len(result.List))
	for _, s := range result.List {
		keys = append(keys, s.PublicKey)
	}
	return keys, nil
}

const entrySubscriptionsQuery = `
query EntrySubscriptions {
  allEntryUpdateSubscriptionsList { contractId keyXdr }
}`

// TokenBalanceSubscriptions lists the registered balance entry watches.
func (c *MercuryClient) TokenBalanceSubscriptions(ctx context.Context, token string) ([]EntrySubscription, error) {
	var result struct {
		List []EntrySubscription `json:"allEntryUpdateSubscriptionsList"`
	}
	if err := c.query(ctx, token, entrySubscriptionsQuery, nil, &result); err != nil {
		return nil, fmt.Errorf("token balance subscriptions: %w", err)
	}
	return result.List, nil
}
