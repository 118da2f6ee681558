package bindings

// ABI definitions of the contracts the deployer talks to. Only the members used
// by the tooling are listed; the compiled artifacts carry the full interface.

const LotteryABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"_priceFeedAddress","type":"address"},
		{"name":"_vrfCoordinator","type":"address"},
		{"name":"_link","type":"address"},
		{"name":"_fee","type":"uint256"},
		{"name":"_keyhash","type":"bytes32"}]},
	{"type":"function","name":"startLottery","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"enter","stateMutability":"payable","inputs":[],"outputs":[]},
	{"type":"function","name":"endLottery","stateMutability":"nonpayable","inputs":[],"outputs":[]},
	{"type":"function","name":"getEntranceFee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"recentWinner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"players","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"lottery_state","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"randomness","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"fee","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"rawFulfillRandomness","stateMutability":"nonpayable","inputs":[
		{"name":"requestId","type":"bytes32"},
		{"name":"randomness","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"requestedRandomness","anonymous":false,"inputs":[
		{"name":"requestId","type":"bytes32","indexed":false}]}
]`

const NFTLotteryABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"priceFeedAddress","type":"address"},
		{"name":"vrfCoordinatorV2","type":"address"},
		{"name":"gasLane","type":"bytes32"},
		{"name":"subscriptionId","type":"uint64"},
		{"name":"callbackGasLimit","type":"uint32"},
		{"name":"interval","type":"uint256"}]},
	{"type":"function","name":"enterLottery","stateMutability":"nonpayable","inputs":[
		{"name":"collection","type":"address"},
		{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"collection","type":"address"},
		{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"checkUpkeep","stateMutability":"view","inputs":[{"name":"","type":"bytes"}],"outputs":[
		{"name":"upkeepNeeded","type":"bool"},
		{"name":"performData","type":"bytes"}]},
	{"type":"function","name":"performUpkeep","stateMutability":"nonpayable","inputs":[{"name":"","type":"bytes"}],"outputs":[]},
	{"type":"function","name":"s_players","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"s_treasury","stateMutability":"view","inputs":[{"name":"","type":"uint256"}],"outputs":[
		{"name":"collection","type":"address"},
		{"name":"tokenId","type":"uint256"},
		{"name":"owner","type":"address"}]},
	{"type":"function","name":"s_recentWinner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"s_lotteryState","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"getNumberOfPlayers","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint256"}]},
	{"type":"function","name":"rawFulfillRandomWords","stateMutability":"nonpayable","inputs":[
		{"name":"requestId","type":"uint256"},
		{"name":"randomWords","type":"uint256[]"}],"outputs":[]},
	{"type":"event","name":"LotteryEnter","anonymous":false,"inputs":[
		{"name":"player","type":"address","indexed":true}]},
	{"type":"event","name":"RequestedLotteryWinner","anonymous":false,"inputs":[
		{"name":"requestId","type":"uint256","indexed":true}]},
	{"type":"event","name":"WinnerPicked","anonymous":false,"inputs":[
		{"name":"winner","type":"address","indexed":true}]}
]`

const MockV3AggregatorABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"_decimals","type":"uint8"},
		{"name":"_initialAnswer","type":"int256"}]},
	{"type":"function","name":"decimals","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
	{"type":"function","name":"latestAnswer","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"int256"}]},
	{"type":"function","name":"updateAnswer","stateMutability":"nonpayable","inputs":[{"name":"_answer","type":"int256"}],"outputs":[]}
]`

const LinkTokenABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[]},
	{"type":"function","name":"transfer","stateMutability":"nonpayable","inputs":[
		{"name":"_to","type":"address"},
		{"name":"_value","type":"uint256"}],"outputs":[{"name":"success","type":"bool"}]},
	{"type":"function","name":"balanceOf","stateMutability":"view","inputs":[{"name":"_owner","type":"address"}],"outputs":[{"name":"balance","type":"uint256"}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"value","type":"uint256","indexed":false}]}
]`

const VRFCoordinatorMockABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[{"name":"linkAddress","type":"address"}]},
	{"type":"function","name":"callBackWithRandomness","stateMutability":"nonpayable","inputs":[
		{"name":"requestId","type":"bytes32"},
		{"name":"randomness","type":"uint256"},
		{"name":"consumerContract","type":"address"}],"outputs":[]},
	{"type":"event","name":"RandomnessRequest","anonymous":false,"inputs":[
		{"name":"sender","type":"address","indexed":false},
		{"name":"keyHash","type":"bytes32","indexed":false},
		{"name":"seed","type":"uint256","indexed":false}]}
]`

const VRFCoordinatorV2MockABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[
		{"name":"_baseFee","type":"uint96"},
		{"name":"_gasPriceLink","type":"uint96"}]},
	{"type":"function","name":"createSubscription","stateMutability":"nonpayable","inputs":[],"outputs":[{"name":"","type":"uint64"}]},
	{"type":"function","name":"fundSubscription","stateMutability":"nonpayable","inputs":[
		{"name":"_subId","type":"uint64"},
		{"name":"_amount","type":"uint96"}],"outputs":[]},
	{"type":"function","name":"addConsumer","stateMutability":"nonpayable","inputs":[
		{"name":"_subId","type":"uint64"},
		{"name":"_consumer","type":"address"}],"outputs":[]},
	{"type":"function","name":"fulfillRandomWords","stateMutability":"nonpayable","inputs":[
		{"name":"_requestId","type":"uint256"},
		{"name":"_consumer","type":"address"}],"outputs":[]},
	{"type":"function","name":"getSubscription","stateMutability":"view","inputs":[{"name":"_subId","type":"uint64"}],"outputs":[
		{"name":"balance","type":"uint96"},
		{"name":"reqCount","type":"uint64"},
		{"name":"owner","type":"address"},
		{"name":"consumers","type":"address[]"}]},
	{"type":"event","name":"SubscriptionCreated","anonymous":false,"inputs":[
		{"name":"subId","type":"uint64","indexed":true},
		{"name":"owner","type":"address","indexed":false}]},
	{"type":"event","name":"RandomWordsFulfilled","anonymous":false,"inputs":[
		{"name":"requestId","type":"uint256","indexed":true},
		{"name":"outputSeed","type":"uint256","indexed":false},
		{"name":"payment","type":"uint96","indexed":false},
		{"name":"success","type":"bool","indexed":false}]}
]`

const ERC721ABI = `[
	{"type":"constructor","stateMutability":"nonpayable","inputs":[]},
	{"type":"function","name":"approve","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"getApproved","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"ownerOf","stateMutability":"view","inputs":[{"name":"tokenId","type":"uint256"}],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"transferFrom","stateMutability":"nonpayable","inputs":[
		{"name":"from","type":"address"},
		{"name":"to","type":"address"},
		{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"function","name":"mint","stateMutability":"nonpayable","inputs":[
		{"name":"to","type":"address"},
		{"name":"tokenId","type":"uint256"}],"outputs":[]},
	{"type":"event","name":"Approval","anonymous":false,"inputs":[
		{"name":"owner","type":"address","indexed":true},
		{"name":"approved","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]},
	{"type":"event","name":"Transfer","anonymous":false,"inputs":[
		{"name":"from","type":"address","indexed":true},
		{"name":"to","type":"address","indexed":true},
		{"name":"tokenId","type":"uint256","indexed":true}]}
]`
