package chaintest

import (
	"encoding/binary"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/dcSpark/smartcontract-lottery/lottery/bindings"
)

type contract interface {
	name() string
	call(e *env, method string, args []interface{}) ([]interface{}, error)
	clone() contract
}

var constructors = map[string]func(e *env, args []interface{}) (contract, error){
	bindings.MockV3AggregatorName:     newPriceFeed,
	bindings.LinkTokenName:            newLinkToken,
	bindings.VRFCoordinatorMockName:   newVRFCoordinator,
	bindings.VRFCoordinatorV2MockName: newVRFCoordinatorV2,
	bindings.LotteryName:              newLottery,
	bindings.NFTLotteryName:           newNFTLottery,
	bindings.MockERC721Name:           newERC721,
}

// LinkSupply is minted to the deployer of a LinkToken.
var LinkSupply = new(big.Int).Exp(big.NewInt(10), big.NewInt(27), nil)

var (
	ether        = big.NewInt(1e18)
	usdEntryFee  = new(big.Int).Mul(big.NewInt(50), ether)
	priceScaling = big.NewInt(1e10)
)

func cp(x *big.Int) *big.Int {
	if x == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(x)
}

func unknownMethod(contractName, method string) error {
	return revert("%s: %s not modelled", contractName, method)
}

// MockV3Aggregator

type priceFeed struct {
	decimals uint8
	answer   *big.Int
}

func newPriceFeed(e *env, args []interface{}) (contract, error) {
	return &priceFeed{decimals: args[0].(uint8), answer: cp(args[1].(*big.Int))}, nil
}

func (p *priceFeed) name() string { return bindings.MockV3AggregatorName }

func (p *priceFeed) clone() contract {
	return &priceFeed{decimals: p.decimals, answer: cp(p.answer)}
}

func (p *priceFeed) call(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "decimals":
		return []interface{}{p.decimals}, nil
	case "latestAnswer":
		return []interface{}{cp(p.answer)}, nil
	case "updateAnswer":
		p.answer = cp(args[0].(*big.Int))
		return nil, nil
	}
	return nil, unknownMethod(p.name(), method)
}

// LinkToken

type linkToken struct {
	balances map[common.Address]*big.Int
}

func newLinkToken(e *env, args []interface{}) (contract, error) {
	return &linkToken{balances: map[common.Address]*big.Int{e.from: cp(LinkSupply)}}, nil
}

func (l *linkToken) name() string { return bindings.LinkTokenName }

func (l *linkToken) clone() contract {
	c := &linkToken{balances: make(map[common.Address]*big.Int, len(l.balances))}
	for k, v := range l.balances {
		c.balances[k] = cp(v)
	}
	return c
}

func (l *linkToken) balanceOf(addr common.Address) *big.Int {
	return cp(l.balances[addr])
}

// move transfers tokens of the token contract deployed at self.
func (l *linkToken) move(e *env, self, from, to common.Address, amount *big.Int) error {
	bal := l.balanceOf(from)
	if bal.Cmp(amount) < 0 {
		return revert("LinkToken: transfer amount exceeds balance")
	}
	l.balances[from] = bal.Sub(bal, amount)
	l.balances[to] = new(big.Int).Add(l.balanceOf(to), amount)
	linkFrame := &env{chain: e.chain, self: self, from: from, value: new(big.Int), logs: e.logs}
	return linkFrame.emit(l.name(), "Transfer", []common.Hash{common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes())}, cp(amount))
}

func (l *linkToken) call(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "balanceOf":
		return []interface{}{l.balanceOf(args[0].(common.Address))}, nil
	case "transfer":
		if err := l.move(e, e.self, e.from, args[0].(common.Address), args[1].(*big.Int)); err != nil {
			return nil, err
		}
		return []interface{}{true}, nil
	}
	return nil, unknownMethod(l.name(), method)
}

// VRFCoordinatorMock

type vrfCoordinator struct {
	link common.Address
}

func newVRFCoordinator(e *env, args []interface{}) (contract, error) {
	return &vrfCoordinator{link: args[0].(common.Address)}, nil
}

func (v *vrfCoordinator) name() string { return bindings.VRFCoordinatorMockName }

func (v *vrfCoordinator) clone() contract {
	c := *v
	return &c
}

func (v *vrfCoordinator) call(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "callBackWithRandomness":
		requestID := args[0].([32]byte)
		randomness := args[1].(*big.Int)
		consumer := args[2].(common.Address)
		_, err := e.callAs(consumer, "rawFulfillRandomness", requestID, cp(randomness))
		return nil, err
	}
	return nil, unknownMethod(v.name(), method)
}

// VRFCoordinatorV2Mock

type subscription struct {
	owner     common.Address
	balance   *big.Int
	reqCount  uint64
	consumers []common.Address
}

type randomWordsRequest struct {
	subID    uint64
	numWords uint32
}

type vrfCoordinatorV2 struct {
	baseFee      *big.Int
	gasPriceLink *big.Int
	lastSubID    uint64
	lastReqID    uint64
	subs         map[uint64]*subscription
	requests     map[uint64]randomWordsRequest
}

func newVRFCoordinatorV2(e *env, args []interface{}) (contract, error) {
	return &vrfCoordinatorV2{
		baseFee:      cp(args[0].(*big.Int)),
		gasPriceLink: cp(args[1].(*big.Int)),
		subs:         make(map[uint64]*subscription),
		requests:     make(map[uint64]randomWordsRequest),
	}, nil
}

func (v *vrfCoordinatorV2) name() string { return bindings.VRFCoordinatorV2MockName }

func (v *vrfCoordinatorV2) clone() contract {
	c := &vrfCoordinatorV2{
		baseFee:      cp(v.baseFee),
		gasPriceLink: cp(v.gasPriceLink),
		lastSubID:    v.lastSubID,
		lastReqID:    v.lastReqID,
		subs:         make(map[uint64]*subscription, len(v.subs)),
		requests:     make(map[uint64]randomWordsRequest, len(v.requests)),
	}
	for id, s := range v.subs {
		c.subs[id] = &subscription{
			owner:     s.owner,
			balance:   cp(s.balance),
			reqCount:  s.reqCount,
			consumers: append([]common.Address(nil), s.consumers...),
		}
	}
	for id, r := range v.requests {
		c.requests[id] = r
	}
	return c
}

func (v *vrfCoordinatorV2) sub(id uint64) (*subscription, error) {
	s, ok := v.subs[id]
	if !ok {
		return nil, revert("InvalidSubscription")
	}
	return s, nil
}

// requestRandomWords is what a consumer calls from performUpkeep.
func (v *vrfCoordinatorV2) requestRandomWords(consumer common.Address, subID uint64, numWords uint32) (uint64, error) {
	s, err := v.sub(subID)
	if err != nil {
		return 0, err
	}
	registered := false
	for _, c := range s.consumers {
		if c == consumer {
			registered = true
			break
		}
	}
	if !registered {
		return 0, revert("InvalidConsumer")
	}
	v.lastReqID++
	s.reqCount++
	v.requests[v.lastReqID] = randomWordsRequest{subID: subID, numWords: numWords}
	return v.lastReqID, nil
}

// RandomWord is the word the v2 mock delivers at index i of a request.
func RandomWord(requestID *big.Int, i int) *big.Int {
	var idx [32]byte
	binary.BigEndian.PutUint64(idx[24:], uint64(i))
	return new(big.Int).SetBytes(crypto.Keccak256(common.BigToHash(requestID).Bytes(), idx[:]))
}

func (v *vrfCoordinatorV2) call(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "createSubscription":
		v.lastSubID++
		v.subs[v.lastSubID] = &subscription{owner: e.from, balance: new(big.Int)}
		var topic common.Hash
		binary.BigEndian.PutUint64(topic[24:], v.lastSubID)
		if err := e.emit(v.name(), "SubscriptionCreated", []common.Hash{topic}, e.from); err != nil {
			return nil, err
		}
		return []interface{}{v.lastSubID}, nil
	case "fundSubscription":
		s, err := v.sub(args[0].(uint64))
		if err != nil {
			return nil, err
		}
		s.balance = new(big.Int).Add(s.balance, args[1].(*big.Int))
		return nil, nil
	case "addConsumer":
		s, err := v.sub(args[0].(uint64))
		if err != nil {
			return nil, err
		}
		if s.owner != e.from {
			return nil, revert("MustBeSubOwner")
		}
		s.consumers = append(s.consumers, args[1].(common.Address))
		return nil, nil
	case "getSubscription":
		s, err := v.sub(args[0].(uint64))
		if err != nil {
			return nil, err
		}
		return []interface{}{cp(s.balance), s.reqCount, s.owner, append([]common.Address{}, s.consumers...)}, nil
	case "fulfillRandomWords":
		requestID := args[0].(*big.Int)
		consumer := args[1].(common.Address)
		if !requestID.IsUint64() {
			return nil, revert("nonexistent request")
		}
		req, ok := v.requests[requestID.Uint64()]
		if !ok {
			return nil, revert("nonexistent request")
		}
		s, err := v.sub(req.subID)
		if err != nil {
			return nil, err
		}
		if s.balance.Cmp(v.baseFee) < 0 {
			return nil, revert("InsufficientBalance")
		}
		words := make([]*big.Int, req.numWords)
		for i := range words {
			words[i] = RandomWord(requestID, i)
		}
		delete(v.requests, requestID.Uint64())
		s.balance = new(big.Int).Sub(s.balance, v.baseFee)
		if _, err := e.callAs(consumer, "rawFulfillRandomWords", cp(requestID), words); err != nil {
			return nil, err
		}
		return nil, e.emit(v.name(), "RandomWordsFulfilled", []common.Hash{common.BigToHash(requestID)}, cp(requestID), cp(v.baseFee), true)
	}
	return nil, unknownMethod(v.name(), method)
}

// Lottery

type lotteryModel struct {
	owner        common.Address
	priceFeed    common.Address
	vrf          common.Address
	link         common.Address
	fee          *big.Int
	keyHash      [32]byte
	state        bindings.LotteryState
	players      []common.Address
	recentWinner common.Address
	randomness   *big.Int
	nonce        uint64
}

func newLottery(e *env, args []interface{}) (contract, error) {
	return &lotteryModel{
		owner:      e.from,
		priceFeed:  args[0].(common.Address),
		vrf:        args[1].(common.Address),
		link:       args[2].(common.Address),
		fee:        cp(args[3].(*big.Int)),
		keyHash:    args[4].([32]byte),
		state:      bindings.LotteryClosed,
		randomness: new(big.Int),
	}, nil
}

func (l *lotteryModel) name() string { return bindings.LotteryName }

func (l *lotteryModel) clone() contract {
	c := *l
	c.fee = cp(l.fee)
	c.randomness = cp(l.randomness)
	c.players = append([]common.Address(nil), l.players...)
	return &c
}

func (l *lotteryModel) entranceFee(e *env) (*big.Int, error) {
	feed, err := lookup[*priceFeed](e, l.priceFeed)
	if err != nil {
		return nil, err
	}
	price := new(big.Int).Mul(feed.answer, priceScaling)
	if price.Sign() <= 0 {
		return nil, revert("bad price")
	}
	fee := new(big.Int).Mul(usdEntryFee, ether)
	return fee.Div(fee, price), nil
}

func (l *lotteryModel) call(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "getEntranceFee":
		fee, err := l.entranceFee(e)
		if err != nil {
			return nil, err
		}
		return []interface{}{fee}, nil
	case "startLottery":
		if e.from != l.owner {
			return nil, revert("Ownable: caller is not the owner")
		}
		if l.state != bindings.LotteryClosed {
			return nil, revert("Can't start a new lottery yet!")
		}
		l.state = bindings.LotteryOpen
		return nil, nil
	case "enter":
		if l.state != bindings.LotteryOpen {
			return nil, revert("Lottery is not open")
		}
		fee, err := l.entranceFee(e)
		if err != nil {
			return nil, err
		}
		if e.value.Cmp(fee) < 0 {
			return nil, revert("Not enough ETH!")
		}
		l.players = append(l.players, e.from)
		return nil, nil
	case "endLottery":
		if e.from != l.owner {
			return nil, revert("Ownable: caller is not the owner")
		}
		if l.state != bindings.LotteryOpen {
			return nil, revert("Lottery is not open")
		}
		link, err := lookup[*linkToken](e, l.link)
		if err != nil {
			return nil, err
		}
		if link.balanceOf(e.self).Cmp(l.fee) < 0 {
			return nil, revert("Not enough LINK - fill contract with faucet")
		}
		if err := link.move(e, l.link, e.self, l.vrf, l.fee); err != nil {
			return nil, err
		}
		var nonce [32]byte
		binary.BigEndian.PutUint64(nonce[24:], l.nonce)
		seed := crypto.Keccak256(l.keyHash[:], make([]byte, 32), common.LeftPadBytes(e.self.Bytes(), 32), nonce[:])
		requestID := crypto.Keccak256Hash(l.keyHash[:], seed)
		l.nonce++
		l.state = bindings.LotteryCalculatingWinner
		if err := e.emit(l.name(), "requestedRandomness", nil, [32]byte(requestID)); err != nil {
			return nil, err
		}
		return nil, nil
	case "rawFulfillRandomness":
		if e.from != l.vrf {
			return nil, revert("Only VRFCoordinator can fulfill")
		}
		if l.state != bindings.LotteryCalculatingWinner {
			return nil, revert("You aren't there yet!")
		}
		randomness := args[1].(*big.Int)
		if randomness.Sign() <= 0 {
			return nil, revert("random-not-found")
		}
		if len(l.players) == 0 {
			return nil, revert("no players")
		}
		idx := new(big.Int).Mod(randomness, big.NewInt(int64(len(l.players))))
		l.recentWinner = l.players[idx.Int64()]
		e.sendETH(l.recentWinner, cp(e.balance()))
		l.players = nil
		l.state = bindings.LotteryClosed
		l.randomness = cp(randomness)
		return nil, nil
	case "recentWinner":
		return []interface{}{l.recentWinner}, nil
	case "players":
		i := args[0].(*big.Int)
		if !i.IsInt64() || i.Int64() >= int64(len(l.players)) {
			return nil, revert("index out of range")
		}
		return []interface{}{l.players[i.Int64()]}, nil
	case "lottery_state":
		return []interface{}{uint8(l.state)}, nil
	case "randomness":
		return []interface{}{cp(l.randomness)}, nil
	case "fee":
		return []interface{}{cp(l.fee)}, nil
	case "owner":
		return []interface{}{l.owner}, nil
	}
	return nil, unknownMethod(l.name(), method)
}

// NFT lottery

type treasuryEntry struct {
	collection common.Address
	tokenID    *big.Int
	owner      common.Address
}

type nftLotteryModel struct {
	owner            common.Address
	priceFeed        common.Address
	vrf              common.Address
	gasLane          [32]byte
	subID            uint64
	callbackGasLimit uint32
	interval         *big.Int
	state            bindings.NFTLotteryState
	lastTimestamp    uint64
	players          []common.Address
	treasury         []treasuryEntry
	recentWinner     common.Address
}

func newNFTLottery(e *env, args []interface{}) (contract, error) {
	return &nftLotteryModel{
		owner:            e.from,
		priceFeed:        args[0].(common.Address),
		vrf:              args[1].(common.Address),
		gasLane:          args[2].([32]byte),
		subID:            args[3].(uint64),
		callbackGasLimit: args[4].(uint32),
		interval:         cp(args[5].(*big.Int)),
		state:            bindings.NFTLotteryOpen,
		lastTimestamp:    e.now(),
	}, nil
}

func (n *nftLotteryModel) name() string { return bindings.NFTLotteryName }

func (n *nftLotteryModel) clone() contract {
	c := *n
	c.interval = cp(n.interval)
	c.players = append([]common.Address(nil), n.players...)
	c.treasury = make([]treasuryEntry, len(n.treasury))
	for i, t := range n.treasury {
		c.treasury[i] = treasuryEntry{collection: t.collection, tokenID: cp(t.tokenID), owner: t.owner}
	}
	return &c
}

func (n *nftLotteryModel) upkeepNeeded(e *env) bool {
	elapsed := new(big.Int).SetUint64(e.now() - n.lastTimestamp)
	return n.state == bindings.NFTLotteryOpen && elapsed.Cmp(n.interval) > 0 && len(n.players) > 0
}

func (n *nftLotteryModel) call(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "enterLottery":
		collection, tokenID := args[0].(common.Address), args[1].(*big.Int)
		if n.state != bindings.NFTLotteryOpen {
			return nil, revert("Lottery__NotOpen")
		}
		nft, err := lookup[*erc721](e, collection)
		if err != nil {
			return nil, err
		}
		if nft.approvals[tokenID.String()] != e.self {
			return nil, revert("Lottery__NotApproved")
		}
		if err := nft.transfer(e, collection, e.self, e.from, e.self, tokenID); err != nil {
			return nil, err
		}
		n.players = append(n.players, e.from)
		n.treasury = append(n.treasury, treasuryEntry{collection: collection, tokenID: cp(tokenID), owner: e.from})
		return nil, e.emit(n.name(), "LotteryEnter", []common.Hash{common.BytesToHash(e.from.Bytes())})
	case "checkUpkeep":
		return []interface{}{n.upkeepNeeded(e), []byte{}}, nil
	case "performUpkeep":
		if !n.upkeepNeeded(e) {
			return nil, revert("Lottery__UpkeepNotNeeded")
		}
		vrf, err := lookup[*vrfCoordinatorV2](e, n.vrf)
		if err != nil {
			return nil, err
		}
		requestID, err := vrf.requestRandomWords(e.self, n.subID, 1)
		if err != nil {
			return nil, err
		}
		n.state = bindings.NFTLotteryCalculating
		topic := common.BigToHash(new(big.Int).SetUint64(requestID))
		return nil, e.emit(n.name(), "RequestedLotteryWinner", []common.Hash{topic})
	case "rawFulfillRandomWords":
		if e.from != n.vrf {
			return nil, revert("OnlyCoordinatorCanFulfill")
		}
		words := args[1].([]*big.Int)
		if len(words) == 0 || len(n.players) == 0 {
			return nil, revert("nothing to fulfill")
		}
		idx := new(big.Int).Mod(words[0], big.NewInt(int64(len(n.players))))
		winner := n.players[idx.Int64()]
		for _, t := range n.treasury {
			nft, err := lookup[*erc721](e, t.collection)
			if err != nil {
				return nil, err
			}
			if err := nft.transfer(e, t.collection, e.self, e.self, winner, t.tokenID); err != nil {
				return nil, err
			}
		}
		n.recentWinner = winner
		n.players = nil
		n.treasury = nil
		n.state = bindings.NFTLotteryOpen
		n.lastTimestamp = e.now()
		return nil, e.emit(n.name(), "WinnerPicked", []common.Hash{common.BytesToHash(winner.Bytes())})
	case "transfer":
		to, collection, tokenID := args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int)
		if e.from != n.owner {
			return nil, revert("Ownable: caller is not the owner")
		}
		for i, t := range n.treasury {
			if t.collection != collection || t.tokenID.Cmp(tokenID) != 0 {
				continue
			}
			nft, err := lookup[*erc721](e, collection)
			if err != nil {
				return nil, err
			}
			if err := nft.transfer(e, collection, e.self, e.self, to, tokenID); err != nil {
				return nil, err
			}
			n.treasury = append(n.treasury[:i], n.treasury[i+1:]...)
			n.players = append(n.players[:i], n.players[i+1:]...)
			return nil, nil
		}
		return nil, revert("Lottery__TokenNotInTreasury")
	case "s_players":
		i := args[0].(*big.Int)
		if !i.IsInt64() || i.Int64() >= int64(len(n.players)) {
			return nil, revert("index out of range")
		}
		return []interface{}{n.players[i.Int64()]}, nil
	case "s_treasury":
		i := args[0].(*big.Int)
		if !i.IsInt64() || i.Int64() >= int64(len(n.treasury)) {
			return nil, revert("index out of range")
		}
		t := n.treasury[i.Int64()]
		return []interface{}{t.collection, cp(t.tokenID), t.owner}, nil
	case "s_recentWinner":
		return []interface{}{n.recentWinner}, nil
	case "s_lotteryState":
		return []interface{}{uint8(n.state)}, nil
	case "getNumberOfPlayers":
		return []interface{}{big.NewInt(int64(len(n.players)))}, nil
	}
	return nil, unknownMethod(n.name(), method)
}

// MockERC721

type erc721 struct {
	owners    map[string]common.Address
	approvals map[string]common.Address
}

func newERC721(e *env, args []interface{}) (contract, error) {
	return &erc721{owners: make(map[string]common.Address), approvals: make(map[string]common.Address)}, nil
}

func (t *erc721) name() string { return bindings.MockERC721Name }

func (t *erc721) clone() contract {
	c := &erc721{owners: make(map[string]common.Address, len(t.owners)), approvals: make(map[string]common.Address, len(t.approvals))}
	for k, v := range t.owners {
		c.owners[k] = v
	}
	for k, v := range t.approvals {
		c.approvals[k] = v
	}
	return c
}

func (t *erc721) ownerOf(id *big.Int) (common.Address, error) {
	owner, ok := t.owners[id.String()]
	if !ok {
		return common.Address{}, revert("ERC721: invalid token ID")
	}
	return owner, nil
}

// transfer moves a token on behalf of caller. self is the collection address.
func (t *erc721) transfer(e *env, self, caller, from, to common.Address, id *big.Int) error {
	owner, err := t.ownerOf(id)
	if err != nil {
		return err
	}
	if owner != from {
		return revert("ERC721: transfer from incorrect owner")
	}
	if caller != owner && t.approvals[id.String()] != caller {
		return revert("ERC721: caller is not token owner or approved")
	}
	delete(t.approvals, id.String())
	t.owners[id.String()] = to
	frame := &env{chain: e.chain, self: self, from: caller, value: new(big.Int), logs: e.logs}
	return frame.emit(t.name(), "Transfer", []common.Hash{
		common.BytesToHash(from.Bytes()), common.BytesToHash(to.Bytes()), common.BigToHash(id),
	})
}

func (t *erc721) call(e *env, method string, args []interface{}) ([]interface{}, error) {
	switch method {
	case "mint":
		to, id := args[0].(common.Address), args[1].(*big.Int)
		if _, ok := t.owners[id.String()]; ok {
			return nil, revert("ERC721: token already minted")
		}
		t.owners[id.String()] = to
		return nil, e.emit(t.name(), "Transfer", []common.Hash{
			{}, common.BytesToHash(to.Bytes()), common.BigToHash(id),
		})
	case "approve":
		to, id := args[0].(common.Address), args[1].(*big.Int)
		owner, err := t.ownerOf(id)
		if err != nil {
			return nil, err
		}
		if owner != e.from {
			return nil, revert("ERC721: approve caller is not token owner")
		}
		t.approvals[id.String()] = to
		return nil, e.emit(t.name(), "Approval", []common.Hash{
			common.BytesToHash(owner.Bytes()), common.BytesToHash(to.Bytes()), common.BigToHash(id),
		})
	case "getApproved":
		id := args[0].(*big.Int)
		if _, err := t.ownerOf(id); err != nil {
			return nil, err
		}
		return []interface{}{t.approvals[id.String()]}, nil
	case "ownerOf":
		owner, err := t.ownerOf(args[0].(*big.Int))
		if err != nil {
			return nil, err
		}
		return []interface{}{owner}, nil
	case "transferFrom":
		return nil, t.transfer(e, e.self, e.from, args[0].(common.Address), args[1].(common.Address), args[2].(*big.Int))
	}
	return nil, unknownMethod(t.name(), method)
}
